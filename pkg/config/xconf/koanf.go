package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Loader 持有最近一次成功加载的 Settings。
type Loader struct {
	path    string
	format  Format
	opts    *Options
	reload  sync.Mutex
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	k        *koanf.Koanf
	settings *Settings
}

// New 从文件加载配置，按扩展名识别格式（.yaml/.yml 或 .json）。
func New(path string, opts ...Option) (*Loader, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	l := &Loader{path: path, format: format, opts: applyOptions(opts)}
	snap, err := l.parse(data)
	if err != nil {
		return nil, err
	}
	l.current.Store(snap)
	return l, nil
}

// NewFromBytes 从字节数据加载配置，适用于 K8s ConfigMap 等场景。
// 空数据得到全部取默认值的 Settings。
func NewFromBytes(data []byte, format Format, opts ...Option) (*Loader, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	l := &Loader{format: format, opts: applyOptions(opts)}
	snap, err := l.parse(data)
	if err != nil {
		return nil, err
	}
	l.current.Store(snap)
	return l, nil
}

// Load 是 New(path).Settings() 的简写。
func Load(path string, opts ...Option) (*Settings, error) {
	l, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	return l.Settings(), nil
}

// Settings 返回当前配置。返回值是快照，Reload 不会修改它。
func (l *Loader) Settings() *Settings {
	return l.current.Load().settings
}

// Client 返回当前配置对应的 koanf 实例，用于读取 Settings 之外的键。
func (l *Loader) Client() *koanf.Koanf {
	return l.current.Load().k
}

// Reload 重新读取文件。解析或校验失败时保留原配置。
func (l *Loader) Reload() error {
	if l.path == "" {
		return ErrNotFromFile
	}
	l.reload.Lock()
	defer l.reload.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	snap, err := l.parse(data)
	if err != nil {
		return err
	}
	l.current.Store(snap)
	return nil
}

// Path 返回配置文件路径，从字节数据创建时为空。
func (l *Loader) Path() string { return l.path }

// Format 返回配置格式。
func (l *Loader) Format() Format { return l.format }

func (l *Loader) parse(data []byte) (*snapshot, error) {
	k := koanf.New(l.opts.Delim)
	if len(data) > 0 {
		if err := loadData(k, data, l.format); err != nil {
			return nil, err
		}
	}

	s := &Settings{}
	if err := k.UnmarshalWithConf("", s, koanf.UnmarshalConf{Tag: l.opts.Tag}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &snapshot{k: k, settings: s}, nil
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	switch format {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
