package llm

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound 所有环境变量和密钥文件都未提供密钥。
var ErrSecretNotFound = errors.New("llm: no API secret found in environment or secret files")

// DefaultSecretKeyNames 密钥文件中可识别的 KEY=VALUE 键名。
var DefaultSecretKeyNames = []string{"ZHIPUAI_API_KEY", "GLM_API_KEY", "API_KEY"}

// SecretSource 描述密钥的查找顺序：先环境变量，再文件。
type SecretSource struct {
	EnvVars  []string
	Files    []string
	KeyNames []string

	// 以下字段便于测试替换
	Getenv   func(string) string
	ReadFile func(string) ([]byte, error)
	HomeDir  func() (string, error)
}

// Secret 包装 API 密钥，打印时脱敏。
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// Reveal 返回原始密钥。
func (s Secret) Reveal() string { return string(s) }

// ResolveSecret 按 SecretSource 的顺序查找第一个非空密钥，并返回其来源描述。
func ResolveSecret(src SecretSource) (Secret, string, error) {
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	readFile := src.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	homeDir := src.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	keyNames := src.KeyNames
	if len(keyNames) == 0 {
		keyNames = DefaultSecretKeyNames
	}

	for _, name := range src.EnvVars {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return Secret(v), "env:" + name, nil
		}
	}

	for _, path := range src.Files {
		expanded := expandHome(path, homeDir)
		data, err := readFile(expanded)
		if err != nil {
			continue
		}
		if v := parseSecretFile(string(data), keyNames); v != "" {
			return Secret(v), "file:" + expanded, nil
		}
	}

	return "", "", ErrSecretNotFound
}

func expandHome(path string, homeDir func() (string, error)) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := homeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// parseSecretFile 支持两种格式：
//   - 文件内容就是密钥本身（单行）
//   - KEY=VALUE 行（可带 export 前缀、引号和 # 注释）
func parseSecretFile(content string, keyNames []string) string {
	found := make(map[string]string)
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value != "" {
			found[strings.TrimSpace(key)] = value
		}
	}

	for _, name := range keyNames {
		if v, ok := found[name]; ok {
			return v
		}
	}
	// 单行且不是已知键：整行视为原始密钥
	if len(lines) == 1 && !strings.HasPrefix(lines[0], "export ") {
		if key, _, ok := strings.Cut(lines[0], "="); !ok || !isEnvName(key) {
			return lines[0]
		}
	}
	return ""
}

func isEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
