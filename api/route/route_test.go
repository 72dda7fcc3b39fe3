package route

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-builder/api/controller"
	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/internal/editor"
	"storefront-builder/internal/preview"
	"storefront-builder/internal/templates"
	"storefront-builder/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ========== HTTP 接口测试 ==========
// 真实的 Hub / Session / UseCase，持久层用 Mock

type testServer struct {
	router    *gin.Engine
	gateway   *MockPageGateway
	operators *MockOperatorRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := new(MockPageGateway)
	ops := new(MockOperatorRepository)
	hub := editor.NewHub()
	t.Cleanup(hub.CloseAll)

	lib, err := templates.NewLibrary()
	require.NoError(t, err)
	uc := usecase.NewBuilderUseCase(gw, hub, lib, usecase.Options{})

	router := gin.New()
	Setup(router, &Dependencies{
		BuilderController:  controller.NewBuilderController(uc),
		SiteController:     controller.NewSiteController(uc),
		WSHandler:          controller.NewWSHandler(hub),
		WebhookController:  controller.NewWebhookController(ops, ""),
		OperatorController: controller.NewOperatorController(ops),
	})
	return &testServer{router: router, gateway: gw, operators: ops}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// openSession 打开一个空站点的会话，返回会话 ID
func (ts *testServer) openSession(t *testing.T) string {
	t.Helper()
	ts.gateway.On("ListPages", "acme").Return([]entity.PageInfo{}, nil)
	ts.gateway.On("LoadDraft", "acme/home").Return(nil, domainErrors.ErrPageNotFound)

	w := ts.do(http.MethodPost, "/api/sessions", `{"siteKey":"acme"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var state editor.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.NotEmpty(t, state.ID)
	return state.ID
}

func decodeMutation(t *testing.T, w *httptest.ResponseRecorder) controller.MutationResponse {
	t.Helper()
	var resp controller.MutationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestRoutes_Health(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront-builder")

	w = ts.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront_builder_http_requests_total")
}

func TestRoutes_EditingFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openSession(t)
	base := "/api/sessions/" + id

	// 新增区块
	w := ts.do(http.MethodPost, base+"/sections", `{"type":"hero"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	hero := decodeMutation(t, w)
	require.NotEmpty(t, hero.ID)
	require.Len(t, hero.State.Layout, 1)

	w = ts.do(http.MethodPost, base+"/sections", `{"type":"hologram"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, base+"/sections", `{"type":"faq"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	faq := decodeMutation(t, w)

	// 重排：把 faq 移到最前
	w = ts.do(http.MethodPost, base+"/sections/reorder", `{"fromId":"`+faq.ID+`","toId":"`+hero.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, faq.ID, decodeMutation(t, w).State.Layout[0].ID)

	// 子块
	w = ts.do(http.MethodPost, base+"/sections/"+faq.ID+"/blocks", `{"type":"list-item"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	block := decodeMutation(t, w)

	w = ts.do(http.MethodPost, base+"/sections/"+faq.ID+"/blocks", `{"type":"image"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, base+"/sections/"+faq.ID+"/blocks/"+block.ID+"/duplicate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeMutation(t, w).State.Layout[0].Blocks, 2)

	// 选中子块后删除，选中回退到所在区块
	w = ts.do(http.MethodPut, base+"/selection", `{"sectionId":"`+faq.ID+`","blockId":"`+block.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodDelete, base+"/sections/"+faq.ID+"/blocks/"+block.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeMutation(t, w).State
	assert.Equal(t, faq.ID, state.Selection.SectionID)
	assert.Empty(t, state.Selection.BlockID)

	// data 整体替换和 JSON Patch
	w = ts.do(http.MethodPut, base+"/sections/"+hero.ID+"/data", `{"title":"Summer sale"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPut, base+"/sections/"+hero.ID+"/data", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPatch, base+"/sections/"+hero.ID+"/data", `[{"op":"replace","path":"/title","value":"Winter sale"}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state = decodeMutation(t, w).State
	assert.JSONEq(t, `{"title":"Winter sale"}`, string(state.Layout[1].Data))

	w = ts.do(http.MethodPatch, base+"/sections/"+hero.ID+"/data", `[{"op":"remove","path":"/missing"}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 隐藏后编辑预览仍然渲染该区块
	w = ts.do(http.MethodPost, base+"/sections/"+hero.ID+"/visibility", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeMutation(t, w).State.Layout[1].Settings.IsHidden)

	assert.Eventually(t, func() bool {
		w := ts.do(http.MethodGet, base+"/preview?format=json", "")
		var out struct {
			Sections []struct {
				Hidden bool `json:"hidden"`
			} `json:"sections"`
		}
		if json.Unmarshal(w.Body.Bytes(), &out) != nil || len(out.Sections) != 2 {
			return false
		}
		return out.Sections[1].Hidden
	}, time.Second, 10*time.Millisecond)

	w = ts.do(http.MethodGet, base+"/preview", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestRoutes_DragGesture(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openSession(t)
	base := "/api/sessions/" + id

	ids := make([]string, 0, 3)
	for _, typ := range []string{"header", "hero", "footer"} {
		w := ts.do(http.MethodPost, base+"/sections", `{"type":"`+typ+`"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decodeMutation(t, w).ID)
	}

	w := ts.do(http.MethodPost, base+"/drag/start", `{"activeId":"`+ids[2]+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"kind":"section"}`, w.Body.String())

	w = ts.do(http.MethodPost, base+"/drag/over", `{"overId":"`+ids[1]+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodPost, base+"/drag/end", `{"overId":"`+ids[0]+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp controller.DragEndResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sections", string(resp.Commit.Scope))
	assert.Equal(t, ids[2], resp.State.Layout[0].ID)

	// 没有进行中的拖拽时 end 不提交
	w = ts.do(http.MethodPost, base+"/drag/end", `{"overId":"`+ids[1]+`"}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Commit.Committed())
}

func TestRoutes_TemplatesThemePages(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openSession(t)
	base := "/api/sessions/" + id

	w := ts.do(http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []templates.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	assert.Len(t, summaries, 3)

	w = ts.do(http.MethodPost, base+"/template", `{"template":"storefront"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeMutation(t, w).State.Layout)

	w = ts.do(http.MethodPost, base+"/template", `{"template":"nope"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodPost, base+"/template", `{"sections":[{"type":"rich-text","data":{"content":"hi"}}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeMutation(t, w).State
	require.Len(t, state.Layout, 1)
	assert.NotEmpty(t, state.Layout[0].ID)

	w = ts.do(http.MethodPost, base+"/template", `{"sections":[{"type":"hologram"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	theme := entity.DefaultTheme()
	theme.PrimaryColor = "#000000"
	body, _ := json.Marshal(theme)
	w = ts.do(http.MethodPut, base+"/theme", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#000000", decodeMutation(t, w).State.Theme.PrimaryColor)

	// 新建页面并切换
	w = ts.do(http.MethodPost, base+"/pages", `{"slug":"about","name":"About"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "acme/about", decodeMutation(t, w).ID)

	w = ts.do(http.MethodPost, base+"/pages", `{"slug":"about"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, base+"/pages/activate", `{"pageKey":"acme/about"}`)
	require.Equal(t, http.StatusOK, w.Code)
	state = decodeMutation(t, w).State
	assert.Equal(t, "acme/about", state.ActivePage)
	assert.Empty(t, state.Layout)

	w = ts.do(http.MethodPost, base+"/pages/activate", `{"pageKey":"other/home"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, base+"/refresh", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRoutes_SaveAndPublish(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openSession(t)
	base := "/api/sessions/" + id

	w := ts.do(http.MethodPost, base+"/sections", `{"type":"hero"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	ts.gateway.On("SaveDraft", "acme/home", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	w = ts.do(http.MethodPost, base+"/save", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var errResp controller.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.True(t, errResp.Retryable)

	ts.gateway.On("SaveDraft", "acme/home", mock.Anything, mock.Anything).Return(nil)
	ts.gateway.On("Publish", "acme/home", mock.Anything, mock.Anything).Return(nil).Once()

	w = ts.do(http.MethodPost, base+"/save", "")
	require.Equal(t, http.StatusOK, w.Code)
	var saved controller.SaveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, "acme/home", saved.PageKey)
	assert.False(t, saved.State.Unsaved)

	w = ts.do(http.MethodPost, base+"/publish", "")
	require.Equal(t, http.StatusOK, w.Code)
	ts.gateway.AssertCalled(t, "Publish", "acme/home", mock.Anything, mock.Anything)
}

func TestRoutes_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/sessions", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.gateway.On("ListPages", "down").Return(nil, errors.New("connection refused"))
	w = ts.do(http.MethodPost, "/api/sessions", `{"siteKey":"down"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	id := ts.openSession(t)
	w = ts.do(http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(http.MethodPost, "/api/sessions/"+id+"/sections", `{"type":"hero"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_PublishedSite(t *testing.T) {
	ts := newTestServer(t)

	doc := entity.Document{
		{ID: "a", Type: entity.SectionRichText, Data: json.RawMessage(`{"content":"Open daily"}`), Blocks: []entity.Block{}},
		{ID: "b", Type: entity.SectionRichText, Data: json.RawMessage(`{"content":"Staff only"}`), Settings: entity.SectionSettings{IsHidden: true}, Blocks: []entity.Block{}},
	}
	ts.gateway.On("LoadPublished", "acme/home").Return(&entity.PageDraft{Key: "acme/home", Layout: doc}, nil)
	ts.gateway.On("LoadPublished", "acme/missing").Return(nil, domainErrors.ErrPageNotFound)
	ts.gateway.On("ListPages", "acme").Return([]entity.PageInfo{{Key: "acme/home", IsPublished: true}}, nil)

	w := ts.do(http.MethodGet, "/sites/acme/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Open daily")
	assert.NotContains(t, w.Body.String(), "Staff only")

	w = ts.do(http.MethodGet, "/sites/acme/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/sites/acme/pages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var pages []entity.PageInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pages))
	assert.Len(t, pages, 1)
}

func TestRoutes_WebhookAndOperator(t *testing.T) {
	ts := newTestServer(t)

	ts.operators.On("Upsert", mock.MatchedBy(func(op *entity.Operator) bool {
		return op.ID == "user_1" && op.Email == "ada@example.com" && op.Name == "Ada Lovelace"
	})).Return(nil).Once()

	payload := `{"type":"user.created","data":{"id":"user_1","email_addresses":[{"email_address":"ada@example.com"}],"first_name":"Ada","last_name":"Lovelace"}}`
	w := ts.do(http.MethodPost, "/webhook/clerk", payload)
	assert.Equal(t, http.StatusOK, w.Code)
	ts.operators.AssertExpectations(t)

	w = ts.do(http.MethodPost, "/webhook/clerk", `{"type":"user.deleted","data":{"id":"user_1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/webhook/clerk", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 未启用鉴权时没有操作员身份
	w = ts.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_PreviewSocket(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openSession(t)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/preview?sessionId=" + id + "&mode=live"

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/preview?sessionId=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/preview?sessionId="+id+"&mode=kiosk", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// live 模式的连接单独计数
	require.Eventually(t, func() bool {
		w := ts.do(http.MethodGet, "/metrics", "")
		return strings.Contains(w.Body.String(), `storefront_builder_preview_sockets_open{mode="live"} 1`)
	}, 2*time.Second, 10*time.Millisecond)

	readUpdate := func() preview.Envelope {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := preview.Decode(data)
		require.NoError(t, err)
		return env
	}

	// 发送 PREVIEW_READY 后收到当前文档
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, preview.EncodeSignal(preview.TypePreviewReady)))
	env := readUpdate()
	assert.Equal(t, preview.TypeLayoutUpdate, env.Type)
	assert.JSONEq(t, `[]`, string(env.Layout))

	// 编辑操作推送全量文档
	w := ts.do(http.MethodPost, "/api/sessions/"+id+"/sections", `{"type":"newsletter"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	env = readUpdate()
	assert.Equal(t, preview.TypeLayoutUpdate, env.Type)
	var layout entity.Document
	require.NoError(t, json.Unmarshal(env.Layout, &layout))
	require.Len(t, layout, 1)
	assert.Equal(t, entity.SectionNewsletter, layout[0].Type)
}
