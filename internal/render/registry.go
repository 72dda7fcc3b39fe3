package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"strings"
	"sync"

	"storefront-builder/domain/entity"
)

// SectionRenderer 把一个区块绘制成 HTML 片段
type SectionRenderer interface {
	Render(section entity.Section, blocks []template.HTML) (template.HTML, error)
}

// RendererFunc 函数适配器
type RendererFunc func(section entity.Section, blocks []template.HTML) (template.HTML, error)

func (f RendererFunc) Render(section entity.Section, blocks []template.HTML) (template.HTML, error) {
	return f(section, blocks)
}

// Options 渲染选项
// EditMode=true 时渲染所有区块（含隐藏的，便于操作员取消隐藏）；否则隐藏区块永不输出
type Options struct {
	EditMode bool
}

// RenderedSection 单个区块的渲染结果
type RenderedSection struct {
	ID     string             `json:"id"`
	Type   entity.SectionType `json:"type"`
	Hidden bool               `json:"hidden"`
	Known  bool               `json:"known"`
	HTML   template.HTML      `json:"html"`
}

// Output 整页渲染结果
type Output struct {
	Sections []RenderedSection `json:"sections"`
	Empty    bool              `json:"empty"`
	HTML     string            `json:"html"`
}

// Registry 区块类型 -> 渲染器
// 新增区块类型只需 Register 一项，分发逻辑不变
type Registry struct {
	mu        sync.RWMutex
	sections  map[entity.SectionType]SectionRenderer
	blocks    map[entity.BlockType]*template.Template
	unknown   *template.Template
	emptyPage template.HTML
}

// NewRegistry 创建带内置渲染器的注册表
func NewRegistry() *Registry {
	r := &Registry{
		sections:  make(map[entity.SectionType]SectionRenderer),
		blocks:    make(map[entity.BlockType]*template.Template),
		unknown:   template.Must(template.New("unknown").Parse(unknownSectionTmpl)),
		emptyPage: template.HTML(emptyStateHTML),
	}
	for t, src := range sectionTemplates {
		r.Register(t, TemplateRenderer(string(t), src))
	}
	for t, src := range blockTemplates {
		r.blocks[t] = template.Must(template.New(string(t)).Funcs(funcs).Parse(src))
	}
	return r
}

// Register 登记（或覆盖）某个区块类型的渲染器
func (r *Registry) Register(t entity.SectionType, renderer SectionRenderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections[t] = renderer
}

// Has 是否有该类型的渲染器
func (r *Registry) Has(t entity.SectionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sections[t]
	return ok
}

// RenderSection 渲染单个区块
// 未知类型或渲染失败输出占位块，不返回错误
func (r *Registry) RenderSection(s entity.Section) (template.HTML, bool) {
	r.mu.RLock()
	renderer, ok := r.sections[s.Type]
	r.mu.RUnlock()

	if !ok {
		return r.placeholder(s, "unknown section"), false
	}

	html, err := renderer.Render(s, r.renderBlocks(s))
	if err != nil {
		log.Printf("[Render] ⚠️ 区块 %s (%s) 渲染失败: %v", s.ID, s.Type, err)
		return r.placeholder(s, "section failed to render"), true
	}
	return html, true
}

// renderBlocks 渲染子块，隐藏子块跳过，未知子块忽略
func (r *Registry) renderBlocks(s entity.Section) []template.HTML {
	out := make([]template.HTML, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if b.Settings.IsHidden {
			continue
		}
		tmpl, ok := r.blocks[b.Type]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		err := tmpl.Execute(&buf, map[string]any{
			"ID":       b.ID,
			"Data":     decodeData(b.Data),
			"Settings": b.Settings,
		})
		if err != nil {
			log.Printf("[Render] ⚠️ 子块 %s 渲染失败: %v", b.ID, err)
			continue
		}
		out = append(out, template.HTML(buf.String()))
	}
	return out
}

func (r *Registry) placeholder(s entity.Section, reason string) template.HTML {
	var buf bytes.Buffer
	_ = r.unknown.Execute(&buf, map[string]any{"ID": s.ID, "Type": string(s.Type), "Reason": reason})
	return template.HTML(buf.String())
}

// Page 渲染整页
// 相同输入总是得到相同输出；空列表输出明确的空状态
func (r *Registry) Page(doc entity.Document, theme *entity.ThemeTokens, opts Options) Output {
	out := Output{Sections: make([]RenderedSection, 0, len(doc))}

	var body strings.Builder
	for _, s := range doc {
		if s.Settings.IsHidden && !opts.EditMode {
			continue
		}
		html, known := r.RenderSection(s)
		out.Sections = append(out.Sections, RenderedSection{
			ID:     s.ID,
			Type:   s.Type,
			Hidden: s.Settings.IsHidden,
			Known:  known,
			HTML:   html,
		})
		body.WriteString(wrapSection(s, html, opts))
	}

	if len(out.Sections) == 0 {
		out.Empty = true
		body.WriteString(string(r.emptyPage))
	}

	t := entity.DefaultTheme()
	if theme != nil {
		t = *theme
	}
	out.HTML = fmt.Sprintf(pageShell, themeCSS(t), body.String())
	return out
}

// wrapSection 外层容器，承载通用 settings（背景、间距、编辑标记）
func wrapSection(s entity.Section, inner template.HTML, opts Options) string {
	classes := []string{"sf-section", "sf-" + template.HTMLEscapeString(string(s.Type))}
	if s.Settings.PaddingTop != "" {
		classes = append(classes, "sf-pt-"+template.HTMLEscapeString(s.Settings.PaddingTop))
	}
	if s.Settings.PaddingBottom != "" {
		classes = append(classes, "sf-pb-"+template.HTMLEscapeString(s.Settings.PaddingBottom))
	}
	if s.Settings.FullWidth {
		classes = append(classes, "sf-full")
	}
	if s.Settings.IsHidden {
		classes = append(classes, "sf-hidden")
	}

	var style []string
	if s.Settings.BackgroundColor != "" {
		style = append(style, "background-color:"+cssValue(s.Settings.BackgroundColor))
	}
	if s.Settings.BackgroundImage != "" {
		style = append(style, "background-image:url('"+cssURL(s.Settings.BackgroundImage)+"')")
	}

	attrs := fmt.Sprintf(`class="%s"`, strings.Join(classes, " "))
	if len(style) > 0 {
		attrs += fmt.Sprintf(` style="%s"`, template.HTMLEscapeString(strings.Join(style, ";")))
	}
	if opts.EditMode {
		attrs += fmt.Sprintf(` data-section-id="%s"`, template.HTMLEscapeString(s.ID))
	}

	overlay := ""
	if s.Settings.OverlayColor != "" {
		opacity := 0.5
		if s.Settings.OverlayOpacity != nil {
			opacity = *s.Settings.OverlayOpacity
		}
		overlay = fmt.Sprintf(`<div class="sf-overlay" style="background:%s;opacity:%.2f"></div>`,
			cssValue(s.Settings.OverlayColor), opacity)
	}
	return fmt.Sprintf("<section %s>%s%s</section>\n", attrs, overlay, inner)
}

func themeCSS(t entity.ThemeTokens) string {
	return fmt.Sprintf(":root{--sf-primary:%s;--sf-secondary:%s;--sf-accent:%s;--sf-heading-font:%s;--sf-body-font:%s}",
		cssValue(t.PrimaryColor), cssValue(t.SecondaryColor), cssValue(t.AccentColor), cssValue(t.HeadingFont), cssValue(t.BodyFont))
}

// cssValue 只保留颜色/字体名中合法的字符
func cssValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("#%.,- ()", r):
			return r
		}
		return -1
	}, v)
}

// cssURL 去掉能逃出 url('...') 的字符
func cssURL(v string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune("'\"()\\<>\n\r", r) {
			return -1
		}
		return r
	}, v)
}

// decodeData 把 data 解成 map 供模板使用，非对象返回空 map
func decodeData(raw json.RawMessage) map[string]any {
	data := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &data)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data
}

// TemplateRenderer 基于 html/template 的渲染器
// 模板可用字段: .ID .Data(map) .Settings .Blocks([]template.HTML)
func TemplateRenderer(name, src string) SectionRenderer {
	tmpl := template.Must(template.New(name).Funcs(funcs).Parse(src))
	return RendererFunc(func(s entity.Section, blocks []template.HTML) (template.HTML, error) {
		var buf bytes.Buffer
		err := tmpl.Execute(&buf, map[string]any{
			"ID":       s.ID,
			"Data":     decodeData(s.Data),
			"Settings": s.Settings,
			"Blocks":   blocks,
		})
		if err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	})
}
