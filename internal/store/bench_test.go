package store_test

import "testing"

func BenchmarkPutRun(b *testing.B) {
	s := testDB(b)
	r := makeRun("bench")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.PutRun(r); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetRunByPrefix(b *testing.B) {
	s := testDB(b)
	saved, err := s.PutRun(makeRun("bench"))
	if err != nil {
		b.Fatal(err)
	}
	prefix := saved.ID[:8]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.GetRun(prefix); err != nil {
			b.Fatal(err)
		}
	}
}
