// Package names 维护地址到展示名的静态映射，仅用于日志与摘要的可读性。
package names

import (
	"fmt"
	"os"

	"mev-monitor-sol/internal/types"

	"gopkg.in/yaml.v3"
)

// Table 地址 → 展示名。程序与代币分开维护，文件里分区更直观。
type Table struct {
	Programs map[string]string `yaml:"programs"`
	Tokens   map[string]string `yaml:"tokens"`
}

// Load 读取 yaml 展示名文件。path 为空时返回空表（全部走降级展示）。
func Load(path string) (*Table, error) {
	if path == "" {
		return &Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read known-names file: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse known-names file: %w", err)
	}
	return &t, nil
}

// Display 返回地址的展示名，未知地址降级为截断的 base58 前缀。
func (t *Table) Display(addr types.Pubkey) string {
	s := addr.String()
	if t != nil {
		if name, ok := t.Tokens[s]; ok {
			return name
		}
		if name, ok := t.Programs[s]; ok {
			return name
		}
	}
	return addr.Short()
}

// DisplayString 同 Display，输入为 base58 字符串。
func (t *Table) DisplayString(s string) string {
	if t != nil {
		if name, ok := t.Tokens[s]; ok {
			return name
		}
		if name, ok := t.Programs[s]; ok {
			return name
		}
	}
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
