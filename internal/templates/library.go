package templates

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/internal/layout"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Template 命名的多区块页面模板
// 模板里的 ID 没有意义，应用时全部重新生成
type Template struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Sections    []entity.Section `json:"sections"`
}

// Summary 模板列表条目
type Summary struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	SectionCount int    `json:"sectionCount"`
}

// templateFile YAML 文件结构，sections 先解成通用结构再转成 JSON 形态
type templateFile struct {
	Key         string           `yaml:"key"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Sections    []map[string]any `yaml:"sections"`
}

// Parse 解析一个 YAML 模板
// 未知区块/子块类型在加载时拒绝，避免应用模板时才失败
func Parse(data []byte) (Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Template{}, fmt.Errorf("yaml 解析失败: %w", err)
	}
	if strings.TrimSpace(file.Key) == "" {
		return Template{}, fmt.Errorf("模板缺少 key")
	}

	raw, err := json.Marshal(file.Sections)
	if err != nil {
		return Template{}, fmt.Errorf("模板 %s 无法转换: %w", file.Key, err)
	}
	var sections []entity.Section
	if err := json.Unmarshal(raw, &sections); err != nil {
		return Template{}, fmt.Errorf("模板 %s 结构错误: %w", file.Key, err)
	}

	for i, s := range sections {
		if !layout.IsKnownSection(s.Type) {
			return Template{}, fmt.Errorf("模板 %s 第 %d 个区块: %w: %q", file.Key, i, domainErrors.ErrUnknownSectionType, s.Type)
		}
		for _, b := range s.Blocks {
			if !layout.AllowsBlock(s.Type, b.Type) {
				return Template{}, fmt.Errorf("模板 %s 第 %d 个区块: %w: %q", file.Key, i, domainErrors.ErrBlockNotAllowed, b.Type)
			}
		}
		if sections[i].Blocks == nil {
			sections[i].Blocks = []entity.Block{}
		}
	}

	name := file.Name
	if name == "" {
		name = file.Key
	}
	return Template{Key: file.Key, Name: name, Description: file.Description, Sections: sections}, nil
}

// Library 模板库：内置模板 + 可选的目录模板（目录中同 key 覆盖内置）
type Library struct {
	mu        sync.RWMutex
	templates map[string]Template
	builtin   map[string]Template
	files     map[string]string // 文件路径 -> 模板 key

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLibrary 加载内置模板
func NewLibrary() (*Library, error) {
	l := &Library{
		templates: make(map[string]Template),
		builtin:   make(map[string]Template),
		files:     make(map[string]string),
	}

	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile("builtin/" + e.Name())
		if err != nil {
			return nil, err
		}
		tpl, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("内置模板 %s: %w", e.Name(), err)
		}
		l.templates[tpl.Key] = tpl
		l.builtin[tpl.Key] = tpl
	}

	log.Printf("[Templates] 📚 已加载 %d 个内置模板", len(l.templates))
	return l, nil
}

// LoadDir 加载目录下所有 .yaml/.yml 模板，单个文件出错只记录日志
func (l *Library) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		if err := l.loadFile(filepath.Join(dir, e.Name())); err != nil {
			log.Printf("[Templates] ⚠️ 跳过 %s: %v", e.Name(), err)
			continue
		}
		loaded++
	}
	log.Printf("[Templates] 📂 从 %s 加载 %d 个模板", dir, loaded)
	return nil
}

func (l *Library) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tpl, err := Parse(data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[tpl.Key] = tpl
	l.files[path] = tpl.Key
	return nil
}

func isTemplateFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Get 按 key 取模板，返回独立副本
func (l *Library) Get(key string) (Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tpl, ok := l.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", domainErrors.ErrTemplateNotFound, key)
	}
	tpl.Sections = layout.Clone(tpl.Sections)
	return tpl, nil
}

// List 所有模板，按 key 排序
func (l *Library) List() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Summary, 0, len(l.templates))
	for _, tpl := range l.templates {
		out = append(out, Summary{
			Key:          tpl.Key,
			Name:         tpl.Name,
			Description:  tpl.Description,
			SectionCount: len(tpl.Sections),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Watch 加载目录中已有的模板，之后文件写入/创建时重新加载
func (l *Library) Watch(dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	// 先开始监听再扫描目录，扫描期间写入的文件也会触发事件
	if err := l.LoadDir(dir); err != nil {
		w.Close()
		return err
	}

	l.mu.Lock()
	l.watcher = w
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !isTemplateFile(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := l.loadFile(event.Name); err != nil {
						log.Printf("[Templates] ⚠️ 重新加载 %s 失败: %v", filepath.Base(event.Name), err)
					} else {
						log.Printf("[Templates] 🔄 已重新加载 %s", filepath.Base(event.Name))
					}
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					l.forget(event.Name)
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[Templates] ⚠️ 监听错误: %v", err)

			case <-done:
				return
			}
		}
	}()

	log.Printf("[Templates] 👀 开始监听 %s", dir)
	return nil
}

// forget 目录模板被删除时移除，被它覆盖的内置模板恢复
func (l *Library) forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.files[path]
	if !ok {
		return
	}
	delete(l.files, path)
	if tpl, isBuiltin := l.builtin[key]; isBuiltin {
		l.templates[key] = tpl
	} else {
		delete(l.templates, key)
	}
	log.Printf("[Templates] 🗑️ 模板 %s 已移除", key)
}

// Close 停止监听
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	err := l.watcher.Close()
	l.watcher = nil
	return err
}
