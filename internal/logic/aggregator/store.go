package aggregator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotStore 是 signer 快照与汇总报告的持久化后端。
// Load 在快照不存在时返回 (nil, nil)，由调用方初始化新记录。
type SnapshotStore interface {
	Load(signer string) (*SignerStats, error)
	Save(stats *SignerStats) error
	SaveReport(r *Report) error
}

// FileStore 把每个 signer 的快照写成 <dir>/<signer>.json，
// 汇总报告写成 <dir>/combined-report.json。
type FileStore struct {
	dir string
}

const reportFileName = "combined-report.json"

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create analysis dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Load(signer string) (*SignerStats, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, signer+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", signer, err)
	}
	var stats SignerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", signer, err)
	}
	return &stats, nil
}

func (f *FileStore) Save(stats *SignerStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", stats.Address, err)
	}
	return f.writeAtomic(stats.Address+".json", data)
}

func (f *FileStore) SaveReport(r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return f.writeAtomic(reportFileName, data)
}

// writeAtomic 先写临时文件再改名，避免进程被杀时留下半截 JSON
func (f *FileStore) writeAtomic(name string, data []byte) error {
	final := filepath.Join(f.dir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
