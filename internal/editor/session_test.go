package editor

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/internal/dnd"
	"storefront-builder/internal/layout"
	"storefront-builder/internal/preview"
	"storefront-builder/internal/render"
	"storefront-builder/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== Session 单元测试 ==========

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func seqFactory() *layout.Factory {
	var n int64
	return &layout.Factory{NewID: func() string {
		return fmt.Sprintf("s%d", atomic.AddInt64(&n, 1))
	}}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(Config{
		ID:      "sess-1",
		SiteKey: "acme",
		Factory: seqFactory(),
	})
	t.Cleanup(s.Close)
	return s
}

func sectionIDs(s *Session) []string {
	return layout.SectionIDs(s.State().Layout)
}

func TestSession_Scenario(t *testing.T) {
	s := newTestSession(t)

	s1, err := s.AddSection(entity.SectionHero)
	require.NoError(t, err)
	s2, err := s.AddSection(entity.SectionFooter)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, []string{s1, s2})

	s.ReorderSections(s2, s1)
	assert.Equal(t, []string{s2, s1}, sectionIDs(s))

	dup := s.DuplicateSection(s2)
	assert.Equal(t, []string{s2, dup, s1}, sectionIDs(s))

	require.True(t, s.SelectSection(s1))
	s.DeleteSection(s1)

	assert.Equal(t, []string{s2, dup}, sectionIDs(s))
	assert.Equal(t, selection.Nothing, s.Selection().Kind())

	// 服务端镜像渲染端最终收到最新文档
	require.Eventually(t, func() bool { return len(s.Preview().Sections) == 2 }, waitFor, tick)
}

func TestSession_DeleteSelectedBlockFallsBackToSection(t *testing.T) {
	s := newTestSession(t)
	sid, err := s.AddSection(entity.SectionFeatures)
	require.NoError(t, err)
	bid, err := s.AddBlock(sid, entity.BlockText)
	require.NoError(t, err)

	require.True(t, s.SelectBlock(sid, bid))
	s.DeleteBlock(sid, bid)

	sel := s.Selection()
	assert.Equal(t, selection.SectionSelected, sel.Kind())
	assert.Equal(t, sid, sel.SectionID)
}

func TestSession_RejectedMutationLeavesState(t *testing.T) {
	s := newTestSession(t)
	sid, err := s.AddSection(entity.SectionProductGrid)
	require.NoError(t, err)
	before := s.State()

	_, err = s.AddSection(entity.SectionType("hologram"))
	assert.ErrorIs(t, err, domainErrors.ErrUnknownSectionType)

	_, err = s.AddBlock(sid, entity.BlockText)
	assert.ErrorIs(t, err, domainErrors.ErrBlockNotAllowed)

	// 不存在的 ID 静默 no-op
	s.DeleteSection("missing")
	s.ToggleVisibility("missing")

	after := s.State()
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, before.Layout, after.Layout)
}

func TestSession_DragGesture(t *testing.T) {
	s := newTestSession(t)
	a, _ := s.AddSection(entity.SectionHero)
	b, _ := s.AddSection(entity.SectionFeatures)
	c, _ := s.AddSection(entity.SectionFAQ)
	b1, _ := s.AddBlock(b, entity.BlockText)
	b2, _ := s.AddBlock(b, entity.BlockImage)
	c1, _ := s.AddBlock(c, entity.BlockListItem)

	t.Run("sections", func(t *testing.T) {
		assert.Equal(t, dnd.KindSection, s.DragStart(c))
		s.DragOver(b)
		assert.True(t, s.State().Dragging)
		commit := s.DragEnd(a)
		assert.Equal(t, dnd.ScopeSections, commit.Scope)
		assert.Equal(t, []string{c, a, b}, sectionIDs(s))

		// 同一次手势不会再次提交
		again := s.DragEnd(b)
		assert.False(t, again.Committed())
	})

	t.Run("blocks of selected section", func(t *testing.T) {
		require.True(t, s.SelectSection(b))
		assert.Equal(t, dnd.KindBlock, s.DragStart(b2))
		commit := s.DragEnd(b1)
		assert.Equal(t, dnd.ScopeBlocks, commit.Scope)
		assert.Equal(t, b, commit.SectionID)
		assert.Equal(t, []string{b2, b1}, layout.BlockIDs(s.State().Layout, b))
	})

	t.Run("cross section rejected", func(t *testing.T) {
		require.True(t, s.SelectSection(b))
		before := s.State().Revision
		s.DragStart(b1)
		commit := s.DragEnd(c1)
		assert.False(t, commit.Committed())
		assert.Equal(t, before, s.State().Revision)
	})

	t.Run("cancel", func(t *testing.T) {
		s.DragStart(a)
		s.DragCancel()
		assert.False(t, s.DragEnd(b).Committed())
	})
}

func TestSession_PatchSectionData(t *testing.T) {
	s := newTestSession(t)
	sid, err := s.AddSection(entity.SectionHero)
	require.NoError(t, err)

	err = s.PatchSectionData(sid, []byte(`[{"op":"replace","path":"/title","value":"Summer Sale"}]`))
	require.NoError(t, err)

	section, ok := layout.FindSection(s.State().Layout, sid)
	require.True(t, ok)
	var data map[string]any
	require.NoError(t, json.Unmarshal(section.Data, &data))
	assert.Equal(t, "Summer Sale", data["title"])

	tests := []struct {
		name  string
		patch string
	}{
		{"malformed", `not a patch`},
		{"bad path", `[{"op":"replace","path":"/nope/deeper","value":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.State().Revision
			err := s.PatchSectionData(sid, []byte(tt.patch))
			var patchErr *PatchError
			assert.ErrorAs(t, err, &patchErr)
			assert.Equal(t, before, s.State().Revision)
		})
	}

	// 区块不存在 -> no-op
	assert.NoError(t, s.PatchSectionData("missing", []byte(`not a patch`)))
}

func TestSession_Pages(t *testing.T) {
	s := newTestSession(t)
	home := entity.HomePageKey("acme")
	assert.Equal(t, home, s.ActivePage())

	hero, _ := s.AddSection(entity.SectionHero)

	ref, err := s.AddPage("about", "About us")
	require.NoError(t, err)
	assert.Equal(t, "acme/about", ref.Key)

	_, err = s.AddPage("about", "")
	assert.ErrorIs(t, err, domainErrors.ErrPageAlreadyExists)
	_, err = s.AddPage("", "")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidPageKey)

	require.True(t, s.SelectSection(hero))
	require.NoError(t, s.SwitchPage(ref.Key))
	assert.Empty(t, s.State().Layout)
	assert.Equal(t, selection.Nothing, s.Selection().Kind())

	_, err = s.AddSection(entity.SectionFAQ)
	require.NoError(t, err)

	// 切回首页，之前的文档仍在内存中
	require.NoError(t, s.SwitchPage(home))
	assert.Equal(t, []string{hero}, sectionIDs(s))

	assert.ErrorIs(t, s.SwitchPage("acme/missing"), domainErrors.ErrPageNotFound)
	assert.ErrorIs(t, s.SwitchPage("other/home"), domainErrors.ErrInvalidPageKey)
	assert.ErrorIs(t, s.SwitchPage("garbage"), domainErrors.ErrInvalidPageKey)
}

func TestSession_InstallLayoutDoesNotOverwrite(t *testing.T) {
	s := newTestSession(t)
	id, _ := s.AddSection(entity.SectionHero)

	s.InstallLayout(s.ActivePage(), entity.Document{})
	assert.Equal(t, []string{id}, sectionIDs(s))

	assert.False(t, s.HasLayout("acme/blog"))
	s.InstallLayout("acme/blog", entity.Document{{ID: "x", Type: entity.SectionFAQ, Blocks: []entity.Block{}}})
	assert.True(t, s.HasLayout("acme/blog"))
	require.NoError(t, s.SwitchPage("acme/blog"))
	assert.Equal(t, []string{"x"}, sectionIDs(s))
	assert.Len(t, s.State().Pages, 2)
}

func TestSession_ThemeReachesPreview(t *testing.T) {
	s := newTestSession(t)
	theme := entity.DefaultTheme()
	theme.AccentColor = "#00ff00"

	s.SetTheme(theme)

	assert.Equal(t, "#00ff00", s.State().Theme.AccentColor)
	assert.True(t, s.State().Unsaved)
	require.Eventually(t, func() bool {
		return strings.Contains(s.Preview().HTML, "--sf-accent:#00ff00")
	}, waitFor, tick)

	// 相同主题不产生新的修订
	rev := s.State().Revision
	s.SetTheme(theme)
	assert.Equal(t, rev, s.State().Revision)
}

func TestSession_ThemeMarksEveryLoadedPageUnsaved(t *testing.T) {
	s := newTestSession(t)
	home := s.ActivePage()
	s.InstallLayout("acme/blog", entity.Document{})
	assert.False(t, s.State().Unsaved)

	theme := entity.DefaultTheme()
	theme.AccentColor = "#abcdef"
	s.SetTheme(theme)
	assert.True(t, s.State().Unsaved)

	// 首页保存后，另一个页面的草稿仍带着旧主题
	s.MarkSaved(s.Snapshot())
	assert.False(t, s.State().Unsaved)
	require.NoError(t, s.SwitchPage("acme/blog"))
	assert.True(t, s.State().Unsaved)

	s.MarkSaved(s.Snapshot())
	require.NoError(t, s.SwitchPage(home))
	assert.False(t, s.State().Unsaved)
}

func TestSession_LateSurfaceGetsCurrentDocumentOnce(t *testing.T) {
	s := NewSession(Config{
		ID:       "sess-3",
		SiteKey:  "acme",
		Factory:  seqFactory(),
		Debounce: 200 * time.Millisecond,
	})
	defer s.Close()

	id, err := s.AddSection(entity.SectionHero)
	require.NoError(t, err)

	// 推送还在合并窗口内时预览端就绪
	surface := preview.NewSurface(render.NewRegistry(), render.Options{EditMode: true})
	surface.Attach(s.Channel())

	require.Eventually(t, func() bool { return surface.Received() == 1 }, waitFor, tick)
	assert.Equal(t, []string{id}, layout.SectionIDs(surface.Layout()))

	// 窗口结束后的广播内容相同，不会重复发送
	assert.Never(t, func() bool { return surface.Received() > 1 }, 400*time.Millisecond, tick)
	assert.Equal(t, []string{id}, layout.SectionIDs(surface.Layout()))
}

func TestSession_MarkSaved(t *testing.T) {
	s := newTestSession(t)
	s.AddSection(entity.SectionHero)

	snap := s.Snapshot()
	assert.True(t, s.State().Unsaved)

	// 保存期间又有新变更：保留未保存标记
	s.AddSection(entity.SectionFooter)
	s.MarkSaved(snap)
	assert.True(t, s.State().Unsaved)

	s.MarkSaved(s.Snapshot())
	assert.False(t, s.State().Unsaved)
}

func TestSession_SnapshotIsIndependent(t *testing.T) {
	s := newTestSession(t)
	id, _ := s.AddSection(entity.SectionHero)

	snap := s.Snapshot()
	snap.Layout[0].ID = "tampered"

	assert.Equal(t, []string{id}, sectionIDs(s))
}

func TestSession_ConcurrentMutationsKeepUniqueIDs(t *testing.T) {
	s := NewSession(Config{ID: "sess-2", SiteKey: "acme"})
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id, err := s.AddSection(entity.SectionFeatures)
				if err != nil {
					continue
				}
				s.DuplicateSection(id)
				s.SelectSection(id)
			}
		}()
	}
	wg.Wait()

	ids := sectionIDs(s)
	assert.Len(t, ids, 160)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
