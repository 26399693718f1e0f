package vfs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

func TestPathHelpers(t *testing.T) {
	tests := []struct {
		path   string
		name   string
		parent string
		temp   string
	}{
		{"/", "/", "", "~"},
		{"/a.html", "a.html", "/", "/~a.html"},
		{"/site/", "site/", "/", "/~site"},
		{"/site/index.html", "index.html", "/site/", "/site/~index.html"},
		{"/site/img/logo.png", "logo.png", "/site/img/", "/site/img/~logo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.name, vfs.Name(tt.path))
			assert.Equal(t, tt.parent, vfs.ParentPath(tt.path))
			if tt.path != vfs.RootPath {
				assert.Equal(t, tt.temp, vfs.TempPrefix(tt.path))
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		valid bool
	}{
		{"root", "/", true},
		{"file", "/a/b.html", true},
		{"folder", "/a/b/", true},
		{"empty", "", false},
		{"relative", "a/b", false},
		{"double slash", "/a//b", false},
		{"at limit", "/" + strings.Repeat("x", vfs.MaxPathLength-1), true},
		{"over limit", "/" + strings.Repeat("x", vfs.MaxPathLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vfs.ValidatePath(tt.path)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, vfs.ErrBadName)
			}
		})
	}
}
