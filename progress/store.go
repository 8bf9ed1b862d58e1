package progress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/types"
)

// ErrArtifactExists 产物已存在，只追加的存储拒绝覆盖。
var ErrArtifactExists = errors.New("progress: artifact already exists")

// Artifact 描述一个已写入的产物文件。
type Artifact struct {
	WorkflowID string    `json:"workflow_id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileStore 使用本地文件系统保存进度产物.
type FileStore struct {
	root   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewFileStore 创建存储并确保根目录存在.
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, types.NewError(types.ErrValidation, "progress root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create progress root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: root, logger: logger.With(zap.String("component", "progress_store"))}, nil
}

// Root 返回根目录。
func (s *FileStore) Root() string { return s.root }

// Dir 返回某个工作流的产物目录。
func (s *FileStore) Dir(workflowID string) string {
	return filepath.Join(s.root, workflowID)
}

// Write 写入一个新产物。同名产物已存在时返回 ErrArtifactExists，原文件保持不变。
func (s *FileStore) Write(ctx context.Context, workflowID, name, content string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.resolve(workflowID, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if _, err := os.Lstat(target); err == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrArtifactExists, workflowID, name)
	}

	data := []byte(content)
	if err := publish(target, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrArtifactExists, workflowID, name)
		}
		return nil, fmt.Errorf("failed to write artifact %s: %w", name, err)
	}

	sum := sha256.Sum256(data)
	art := &Artifact{
		WorkflowID: workflowID,
		Name:       filepath.ToSlash(name),
		Path:       target,
		Size:       int64(len(data)),
		Checksum:   hex.EncodeToString(sum[:]),
		CreatedAt:  time.Now().UTC(),
	}
	s.logger.Debug("artifact written",
		zap.String("workflow_id", workflowID),
		zap.String("name", art.Name),
		zap.Int64("size", art.Size))
	return art, nil
}

// publish 先写临时文件再硬链接到目标路径：链接是原子的且目标存在时失败。
// 不支持硬链接的文件系统上退回 O_EXCL 直接写入。
func publish(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return writeExclusive(target, data)
	}
	return nil
}

func writeExclusive(target string, data []byte) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read 读取产物内容。
func (s *FileStore) Read(workflowID, name string) (string, error) {
	target, err := s.resolve(workflowID, name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", types.Errorf(types.ErrNotFound, "artifact %s not found for workflow %s", name, workflowID)
		}
		return "", err
	}
	return string(data), nil
}

// Remove 删除一个产物，不存在时不报错。
func (s *FileStore) Remove(workflowID, name string) error {
	target, err := s.resolve(workflowID, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact %s: %w", name, err)
	}
	return nil
}

// Exists 判断产物是否已写入。
func (s *FileStore) Exists(workflowID, name string) bool {
	target, err := s.resolve(workflowID, name)
	if err != nil {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}

// List 返回工作流目录下全部产物（相对名，按名称排序）。目录不存在时返回空列表。
func (s *FileStore) List(workflowID string) ([]Artifact, error) {
	if err := validateID(workflowID); err != nil {
		return nil, err
	}
	return scanDir(workflowID, s.Dir(workflowID))
}

func scanDir(workflowID, dir string) ([]Artifact, error) {
	var out []Artifact
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, Artifact{
			WorkflowID: workflowID,
			Name:       filepath.ToSlash(rel),
			Path:       p,
			Size:       info.Size(),
			CreatedAt:  info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) resolve(workflowID, name string) (string, error) {
	if err := validateID(workflowID); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", types.Errorf(types.ErrValidation, "invalid artifact name %q", name)
	}
	return filepath.Join(s.Dir(workflowID), clean), nil
}

func validateID(workflowID string) error {
	if workflowID == "" || workflowID == "." || workflowID == ".." ||
		strings.ContainsAny(workflowID, `/\`) {
		return types.Errorf(types.ErrValidation, "invalid workflow id %q", workflowID)
	}
	return nil
}
