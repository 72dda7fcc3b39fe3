package render

import (
	"fmt"
	"html/template"

	"storefront-builder/domain/entity"
)

// funcs 模板辅助函数，data 中缺失的字段一律输出零值
var funcs = template.FuncMap{
	"str": func(m map[string]any, key string) string {
		v, ok := m[key]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	},
	"list": func(m map[string]any, key string) []any {
		if v, ok := m[key].([]any); ok {
			return v
		}
		return nil
	},
	"num": func(m map[string]any, key string, def int) int {
		if v, ok := m[key].(float64); ok && v > 0 {
			return int(v)
		}
		return def
	},
	"item": func(v any, key string) string {
		if m, ok := v.(map[string]any); ok {
			if s, ok := m[key].(string); ok {
				return s
			}
		}
		if s, ok := v.(string); ok && key == "" {
			return s
		}
		return ""
	},
}

const blocksTmpl = `{{range .Blocks}}{{.}}{{end}}`

// sectionTemplates 内置区块模板，只输出语义化 HTML，样式交给主题 CSS
var sectionTemplates = map[entity.SectionType]string{
	entity.SectionHero: `<div class="sf-hero-inner"><h1>{{str .Data "title"}}</h1><p>{{str .Data "subtitle"}}</p>` +
		`{{with str .Data "ctaText"}}<a class="sf-btn" href="{{str $.Data "ctaLink"}}">{{.}}</a>{{end}}` + blocksTmpl + `</div>`,
	entity.SectionHeader: `<header class="sf-header-inner"><span class="sf-logo">{{str .Data "logoText"}}</span>` +
		`<nav>{{range list .Data "links"}}<a href="{{item . "href"}}">{{item . "label"}}</a>{{end}}` + blocksTmpl + `</nav></header>`,
	entity.SectionFooter: `<footer class="sf-footer-inner">` + blocksTmpl + `<small>{{str .Data "copyright"}}</small></footer>`,
	entity.SectionProductGrid: `<div class="sf-grid" data-columns="{{num .Data "columns" 3}}" data-limit="{{num .Data "limit" 6}}">` +
		`<h2>{{str .Data "title"}}</h2>{{range list .Data "productIds"}}<div class="sf-product" data-product-id="{{item . ""}}"></div>{{end}}</div>`,
	entity.SectionTestimonialCarousel: `<div class="sf-testimonials"><h2>{{str .Data "title"}}</h2>` +
		`{{range list .Data "testimonials"}}<blockquote>{{item . "quote"}}<cite>{{item . "author"}}</cite></blockquote>{{end}}` + blocksTmpl + `</div>`,
	entity.SectionContactForm: `<form class="sf-contact" method="post"><h2>{{str .Data "title"}}</h2>` +
		`{{range list .Data "fields"}}<label>{{item . ""}}<input name="{{item . ""}}"></label>{{end}}` + blocksTmpl +
		`<button type="submit">{{str .Data "submitText"}}</button></form>`,
	entity.SectionFeatures: `<div class="sf-features" data-columns="{{num .Data "columns" 3}}"><h2>{{str .Data "title"}}</h2>` + blocksTmpl + `</div>`,
	entity.SectionGallery:  `<div class="sf-gallery" data-columns="{{num .Data "columns" 4}}"><h2>{{str .Data "title"}}</h2>` + blocksTmpl + `</div>`,
	entity.SectionRichText: `<div class="sf-richtext"><p>{{str .Data "content"}}</p>` + blocksTmpl + `</div>`,
	entity.SectionCallToAction: `<div class="sf-cta"><h2>{{str .Data "title"}}</h2>` + blocksTmpl +
		`<a class="sf-btn" href="{{str .Data "buttonLink"}}">{{str .Data "buttonText"}}</a></div>`,
	entity.SectionNewsletter: `<form class="sf-newsletter"><h2>{{str .Data "title"}}</h2>` +
		`<input type="email" placeholder="{{str .Data "placeholder"}}"><button>{{str .Data "buttonText"}}</button></form>`,
	entity.SectionFAQ: `<div class="sf-faq"><h2>{{str .Data "title"}}</h2>` + blocksTmpl + `</div>`,
}

var blockTemplates = map[entity.BlockType]string{
	entity.BlockText:     `<p class="sf-text" style="text-align:{{or .Settings.Alignment "inherit"}}">{{str .Data "text"}}</p>`,
	entity.BlockImage:    `{{with str .Data "src"}}<img class="sf-image" src="{{.}}" alt="{{str $.Data "alt"}}">{{end}}`,
	entity.BlockButton:   `<a class="sf-btn sf-btn-{{or (str .Data "variant") "primary"}}" href="{{str .Data "href"}}">{{str .Data "label"}}</a>`,
	entity.BlockDivider:  `<hr class="sf-divider sf-divider-{{or (str .Data "style") "solid"}}">`,
	entity.BlockSpacer:   `<div class="sf-spacer sf-spacer-{{or (str .Data "height") "md"}}"></div>`,
	entity.BlockListItem: `<div class="sf-item"><strong>{{str .Data "title"}}</strong><span>{{str .Data "description"}}</span></div>`,
}

const unknownSectionTmpl = `<div class="sf-unknown" data-section-id="{{.ID}}">{{.Reason}}: {{.Type}}</div>`

const emptyStateHTML = `<div class="sf-empty">This page has no sections yet.</div>`

const pageShell = `<!DOCTYPE html><html><head><meta charset="utf-8"><style>%s</style></head><body>
%s</body></html>`
