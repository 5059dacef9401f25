package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRequireIncludeDirs(t *testing.T) {
	for _, test := range []struct {
		desc    string
		dep     Data
		want    []string
		wantErr bool
	}{
		{desc: "interface", dep: Interface([]string{"include"}), want: []string{"include"}},
		{desc: "library", dep: Library([]string{"include"}, []string{"a.o"}), want: []string{"include"}},
		{desc: "executable rejected", dep: Executable("/build/app"), wantErr: true},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got, err := RequireIncludeDirs("lib", test.dep)
			if test.wantErr {
				if err == nil {
					t.Fatal("RequireIncludeDirs() error = nil, want an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("RequireIncludeDirs() error = %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("RequireIncludeDirs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
