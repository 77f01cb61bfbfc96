package car

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore は画像データの保存先インターフェース。
type ImageStore interface {
	// Save は画像データを保存し、公開URLパスを返す。
	Save(data []byte, ext string) (string, error)
}

// DiskImageStore はローカルディスクへの画像保存の実装。
// ファイル名の衝突と推測を避けるためUUIDで命名する。
type DiskImageStore struct {
	dir          string
	publicPrefix string
}

// NewDiskImageStore はDiskImageStoreの新しいインスタンスを生成する。
// 保存先ディレクトリが存在しない場合は作成する。
func NewDiskImageStore(dir, publicPrefix string) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("画像保存ディレクトリの作成に失敗しました: %w", err)
	}
	return &DiskImageStore{
		dir:          dir,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
	}, nil
}

// Save は画像データをディスクに保存し、公開URLパスを返す。
func (s *DiskImageStore) Save(data []byte, ext string) (string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	return s.publicPrefix + "/" + name, nil
}

// compile-time interface check
var _ ImageStore = (*DiskImageStore)(nil)
