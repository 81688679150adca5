package utils

import "testing"

func TestGitBlobSHA(t *testing.T) {
	// Values produced by `git hash-object --stdin`.
	cases := map[string]string{
		"":              "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		"hello world\n": "3b18e512dba79e4c8300dd08aeb37f8e728b8dad",
	}
	for in, want := range cases {
		if got := GitBlobSHA([]byte(in)); got != want {
			t.Errorf("GitBlobSHA(%q) = %s, want %s", in, got, want)
		}
	}
}
