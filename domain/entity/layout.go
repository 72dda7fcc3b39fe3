package entity

import "encoding/json"

// SectionType 区块类型（封闭枚举）
type SectionType string

const (
	SectionHero                SectionType = "hero"
	SectionHeader              SectionType = "header"
	SectionFooter              SectionType = "footer"
	SectionProductGrid         SectionType = "product-grid"
	SectionTestimonialCarousel SectionType = "testimonial-carousel"
	SectionContactForm         SectionType = "contact-form"
	SectionFeatures            SectionType = "features"
	SectionGallery             SectionType = "gallery"
	SectionRichText            SectionType = "rich-text"
	SectionCallToAction        SectionType = "call-to-action"
	SectionNewsletter          SectionType = "newsletter"
	SectionFAQ                 SectionType = "faq"
)

// BlockType 子块类型（封闭枚举）
type BlockType string

const (
	BlockText     BlockType = "text"
	BlockImage    BlockType = "image"
	BlockButton   BlockType = "button"
	BlockDivider  BlockType = "divider"
	BlockSpacer   BlockType = "spacer"
	BlockListItem BlockType = "list-item"
)

// SectionSettings 与类型无关的展示属性，所有区块结构一致
type SectionSettings struct {
	IsHidden        bool     `json:"isHidden,omitempty"`
	BackgroundImage string   `json:"backgroundImage,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	OverlayColor    string   `json:"overlayColor,omitempty"`
	OverlayOpacity  *float64 `json:"overlayOpacity,omitempty"`
	PaddingTop      string   `json:"paddingTop,omitempty"`
	PaddingBottom   string   `json:"paddingBottom,omitempty"`
	FullWidth       bool     `json:"fullWidth,omitempty"`
}

// BlockSettings 子块级展示属性
type BlockSettings struct {
	IsHidden     bool   `json:"isHidden,omitempty"`
	Alignment    string `json:"alignment,omitempty"`
	Width        string `json:"width,omitempty"`
	MarginTop    string `json:"marginTop,omitempty"`
	MarginBottom string `json:"marginBottom,omitempty"`
}

// Block 区块内部可排序的子单元
// Data 只由渲染端解释，核心只负责复制和序列化
type Block struct {
	ID       string          `json:"id"`
	Type     BlockType       `json:"type"`
	Data     json.RawMessage `json:"data"`
	Settings BlockSettings   `json:"settings"`
}

// Section 页面顶层可排序单元
type Section struct {
	ID       string          `json:"id"`
	Type     SectionType     `json:"type"`
	Data     json.RawMessage `json:"data"`
	Settings SectionSettings `json:"settings"`
	Blocks   []Block         `json:"blocks"`
}

// Document 布局文档，持久化格式就是 Section 数组
type Document []Section

// ThemeTokens 主题变量，与文档并列存放，走同一个同步通道
type ThemeTokens struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	AccentColor    string `json:"accentColor"`
	HeadingFont    string `json:"headingFont"`
	BodyFont       string `json:"bodyFont"`
}

// DefaultTheme 默认主题
func DefaultTheme() ThemeTokens {
	return ThemeTokens{
		PrimaryColor:   "#111827",
		SecondaryColor: "#6B7280",
		AccentColor:    "#F59E0B",
		HeadingFont:    "Inter",
		BodyFont:       "Inter",
	}
}
