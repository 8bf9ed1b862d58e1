package llm

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSource(env map[string]string, files map[string]string) SecretSource {
	return SecretSource{
		EnvVars: []string{"ZHIPUAI_API_KEY", "GLM_API_KEY"},
		Files: []string{
			"/workspace/glm_api_key",
			"/workspace/.private/GLM_API_KEY",
			"~/.private/GLM_API_KEY",
			"glm_api_key",
		},
		Getenv: func(k string) string { return env[k] },
		ReadFile: func(p string) ([]byte, error) {
			if v, ok := files[p]; ok {
				return []byte(v), nil
			}
			return nil, fs.ErrNotExist
		},
		HomeDir: func() (string, error) { return "/home/tester", nil },
	}
}

func TestResolveSecret_EnvOrder(t *testing.T) {
	s, src, err := ResolveSecret(fakeSource(map[string]string{
		"ZHIPUAI_API_KEY": "first",
		"GLM_API_KEY":     "second",
	}, nil))
	require.NoError(t, err)
	assert.Equal(t, "first", s.Reveal())
	assert.Equal(t, "env:ZHIPUAI_API_KEY", src)

	s, _, err = ResolveSecret(fakeSource(map[string]string{"GLM_API_KEY": " second "}, nil))
	require.NoError(t, err)
	assert.Equal(t, "second", s.Reveal())
}

func TestResolveSecret_EnvBeatsFiles(t *testing.T) {
	s, _, err := ResolveSecret(fakeSource(
		map[string]string{"GLM_API_KEY": "env-key"},
		map[string]string{"/workspace/glm_api_key": "file-key"},
	))
	require.NoError(t, err)
	assert.Equal(t, "env-key", s.Reveal())
}

func TestResolveSecret_FileFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"raw", "abc123.xyz\n", "abc123.xyz"},
		{"raw with padding", "c2VjcmV0==", "c2VjcmV0=="},
		{"kv", "GLM_API_KEY=kv-key\n", "kv-key"},
		{"export quoted", "# comment\nexport ZHIPUAI_API_KEY=\"quoted\"\n", "quoted"},
		{"preferred name wins", "API_KEY=generic\nGLM_API_KEY=specific\n", "specific"},
		{"unknown key only", "OTHER_KEY=nope\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSecretFile(tt.content, DefaultSecretKeyNames))
		})
	}
}

func TestResolveSecret_FileOrderAndHomeExpansion(t *testing.T) {
	s, src, err := ResolveSecret(fakeSource(nil, map[string]string{
		"/home/tester/.private/GLM_API_KEY": "home-key",
		"glm_api_key":                       "cwd-key",
	}))
	require.NoError(t, err)
	assert.Equal(t, "home-key", s.Reveal())
	assert.Equal(t, "file:/home/tester/.private/GLM_API_KEY", src)
}

func TestResolveSecret_SkipsEmptyFiles(t *testing.T) {
	s, _, err := ResolveSecret(fakeSource(nil, map[string]string{
		"/workspace/glm_api_key": "\n# nothing here\n",
		"glm_api_key":            "cwd-key",
	}))
	require.NoError(t, err)
	assert.Equal(t, "cwd-key", s.Reveal())
}

func TestResolveSecret_NotFound(t *testing.T) {
	_, _, err := ResolveSecret(fakeSource(nil, nil))
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}

func TestSecret_Masked(t *testing.T) {
	assert.Equal(t, "***", Secret("real").String())
	assert.Equal(t, "", Secret("").String())
}
