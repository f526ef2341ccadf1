package observability

import "testing"

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/students/123/chapter-tallies")
	want := "/api/v1/students/{id}/chapter-tallies"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractStudentID(t *testing.T) {
	if id := extractStudentID("/api/v1/students/456/attempts"); id != 456 {
		t.Fatalf("expected 456, got %d", id)
	}
	if id := extractStudentID("/api/v1/quizzes/1"); id != 0 {
		t.Fatalf("expected 0 for non-student path, got %d", id)
	}
}
