package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr error
	}{
		{path: "/a.txt"},
		{path: "/site/index.html"},
		{path: "/site/deep/er/file with spaces.md"},
		{path: "/ünïcode/ファイル.txt"},
		{path: "", wantErr: ErrInvalidPath},
		{path: "relative.txt", wantErr: ErrInvalidPath},
		{path: "site/file.txt", wantErr: ErrInvalidPath},
		{path: "//file.txt", wantErr: ErrInvalidPath},
		{path: "/site//file.txt", wantErr: ErrInvalidPath},
		{path: "/site/../file.txt", wantErr: ErrInvalidPath},
		{path: "/site/./file.txt", wantErr: ErrInvalidPath},
		{path: "/bad\x00name", wantErr: ErrInvalidPath},
		{path: "/bad\xffname", wantErr: ErrInvalidPath},
		{path: "/", wantErr: ErrInvalidName},
		{path: "/site/", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDir(t *testing.T) {
	assert.NoError(t, ValidateDir("/"))
	assert.NoError(t, ValidateDir("/site/"))
	assert.NoError(t, ValidateDir("/site/sub/"))
	assert.ErrorIs(t, ValidateDir("/site"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateDir("site/"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateDir("/site//"), ErrInvalidPath)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("index.html"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("a/b"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(".."), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("\xff"), ErrInvalidName)
}

func TestSplitPath(t *testing.T) {
	dir, name, err := SplitPath("/site/docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, "/site/docs/", dir)
	assert.Equal(t, "readme.md", name)

	dir, name, err = SplitPath("/top.txt")
	require.NoError(t, err)
	assert.Equal(t, "/", dir)
	assert.Equal(t, "top.txt", name)
}

func TestNormalizeDir(t *testing.T) {
	assert.Equal(t, "/", NormalizeDir(""))
	assert.Equal(t, "/", NormalizeDir("/"))
	assert.Equal(t, "/site/", NormalizeDir("site"))
	assert.Equal(t, "/site/", NormalizeDir("/site"))
	assert.Equal(t, "/site/", NormalizeDir("site/"))
}
