package layout

import (
	"encoding/json"

	"storefront-builder/domain/entity"
)

// SectionDefault 每种区块的默认数据与可接受的子块类型
// 新增区块类型只需在 SectionDefaults 中登记一项
type SectionDefault struct {
	Data          json.RawMessage
	Settings      entity.SectionSettings
	AllowedBlocks []entity.BlockType
}

// SectionDefaults 区块类型注册表
var SectionDefaults = map[entity.SectionType]SectionDefault{
	entity.SectionHero: {
		Data:          json.RawMessage(`{"title":"Welcome to our store","subtitle":"Discover our latest collection","ctaText":"Shop now","ctaLink":"#products"}`),
		Settings:      entity.SectionSettings{PaddingTop: "lg", PaddingBottom: "lg", FullWidth: true},
		AllowedBlocks: []entity.BlockType{entity.BlockText, entity.BlockButton, entity.BlockImage, entity.BlockSpacer},
	},
	entity.SectionHeader: {
		Data:          json.RawMessage(`{"logoText":"My Store","links":[]}`),
		Settings:      entity.SectionSettings{PaddingTop: "sm", PaddingBottom: "sm"},
		AllowedBlocks: []entity.BlockType{entity.BlockButton, entity.BlockListItem},
	},
	entity.SectionFooter: {
		Data:          json.RawMessage(`{"copyright":"© My Store","columns":[]}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockText, entity.BlockListItem, entity.BlockDivider},
	},
	entity.SectionProductGrid: {
		Data:     json.RawMessage(`{"title":"Featured products","columns":3,"limit":6,"productIds":[]}`),
		Settings: entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
	},
	entity.SectionTestimonialCarousel: {
		Data:          json.RawMessage(`{"title":"What our customers say","testimonials":[],"autoplay":true}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockText, entity.BlockImage},
	},
	entity.SectionContactForm: {
		Data:          json.RawMessage(`{"title":"Contact us","submitText":"Send","fields":["name","email","message"]}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockText, entity.BlockDivider},
	},
	entity.SectionFeatures: {
		Data:          json.RawMessage(`{"title":"Why shop with us","columns":3}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockListItem, entity.BlockText, entity.BlockImage, entity.BlockSpacer},
	},
	entity.SectionGallery: {
		Data:          json.RawMessage(`{"title":"Gallery","columns":4}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockImage},
	},
	entity.SectionRichText: {
		Data:          json.RawMessage(`{"content":""}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockText, entity.BlockImage, entity.BlockButton, entity.BlockDivider, entity.BlockSpacer},
	},
	entity.SectionCallToAction: {
		Data:          json.RawMessage(`{"title":"Ready to order?","buttonText":"Get started","buttonLink":"#"}`),
		Settings:      entity.SectionSettings{PaddingTop: "lg", PaddingBottom: "lg"},
		AllowedBlocks: []entity.BlockType{entity.BlockText, entity.BlockButton},
	},
	entity.SectionNewsletter: {
		Data:     json.RawMessage(`{"title":"Join our newsletter","placeholder":"Your email","buttonText":"Subscribe"}`),
		Settings: entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
	},
	entity.SectionFAQ: {
		Data:          json.RawMessage(`{"title":"Frequently asked questions"}`),
		Settings:      entity.SectionSettings{PaddingTop: "md", PaddingBottom: "md"},
		AllowedBlocks: []entity.BlockType{entity.BlockListItem, entity.BlockDivider},
	},
}

// BlockDefaults 子块默认数据
var BlockDefaults = map[entity.BlockType]json.RawMessage{
	entity.BlockText:     json.RawMessage(`{"text":"New text"}`),
	entity.BlockImage:    json.RawMessage(`{"src":"","alt":""}`),
	entity.BlockButton:   json.RawMessage(`{"label":"Click here","href":"#","variant":"primary"}`),
	entity.BlockDivider:  json.RawMessage(`{"style":"solid"}`),
	entity.BlockSpacer:   json.RawMessage(`{"height":"md"}`),
	entity.BlockListItem: json.RawMessage(`{"title":"List item","description":""}`),
}

// IsKnownSection 判断区块类型是否在枚举内
func IsKnownSection(t entity.SectionType) bool {
	_, ok := SectionDefaults[t]
	return ok
}

// IsKnownBlock 判断子块类型是否在枚举内
func IsKnownBlock(t entity.BlockType) bool {
	_, ok := BlockDefaults[t]
	return ok
}

// AllowsBlock 判断区块是否接受该子块类型
func AllowsBlock(section entity.SectionType, block entity.BlockType) bool {
	def, ok := SectionDefaults[section]
	if !ok {
		return false
	}
	for _, t := range def.AllowedBlocks {
		if t == block {
			return true
		}
	}
	return false
}
