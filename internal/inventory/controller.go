package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hitoshi/carman/internal/adminclient"
	"github.com/hitoshi/carman/internal/model"
)

// Status は一覧コントローラーの状態を表す。
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusErrored Status = "errored"
)

// fetchErrorFallback はサーバーからもトランスポートからもメッセージが
// 得られなかった場合の表示文言。
const fetchErrorFallback = "車両一覧の取得に失敗しました。しばらく待ってから再度お試しください。"

// ListAPI は一覧コントローラーが利用する車両APIのインターフェース。
type ListAPI interface {
	ListCars(ctx context.Context, page, limit int, category string) (map[string]any, error)
	CreateCar(ctx context.Context, fields map[string]string, imageURLs []string) (map[string]any, error)
	UpdateCar(ctx context.Context, carID string, fields map[string]any) (map[string]any, error)
	DeleteCar(ctx context.Context, carID string) error
}

// NotifyFunc は成功・失敗をUIへ通知するためのコールバック。
// kindは"success"または"error"。表示方法は呼び出し側が決める。
type NotifyFunc func(kind, title, message string)

// View は一覧コントローラーの読み取りモデル。
type View struct {
	Records    []Record
	Page       int
	TotalPages int
	TotalCount int
	Status     Status
	Error      string
}

// Controller はページング・フィルタ付きの車両一覧を管理する。
// 同時に複数のフェッチが重なった場合は、最後に発行されたリクエストの結果
// だけが表示状態に反映される。古いリクエストはキャンセルされ、
// その失敗は利用者に見えるエラーとして扱われない。
type Controller struct {
	client   ListAPI
	notify   NotifyFunc
	pageSize int

	mu         sync.Mutex
	page       int
	category   string
	status     Status
	result     Result
	errMsg     string
	cancel     context.CancelFunc
	generation int
	localIDs   localIDGenerator
}

// NewController はControllerを生成する。notifyはnilでもよい。
func NewController(client ListAPI, pageSize int, notify NotifyFunc) *Controller {
	if notify == nil {
		notify = func(kind, title, message string) {}
	}
	return &Controller{
		client:   client,
		notify:   notify,
		pageSize: pageSize,
		page:     1,
		category: model.CategoryAll,
		status:   StatusIdle,
	}
}

// Snapshot は現在の表示状態のコピーを返す。
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]Record, len(c.result.Records))
	copy(records, c.result.Records)

	return View{
		Records:    records,
		Page:       c.result.Page,
		TotalPages: c.result.TotalPages,
		TotalCount: c.result.TotalCount,
		Status:     c.status,
		Error:      c.errMsg,
	}
}

// Refresh は現在のページ・フィルタで一覧を再取得する。
func (c *Controller) Refresh(ctx context.Context) {
	c.fetch(ctx)
}

// RequestPage は指定ページへ移動する。
// ページ番号は[1, totalPages]にクランプされ、範囲外の値がサーバーに
// 送られることはない。
func (c *Controller) RequestPage(ctx context.Context, page int) {
	c.mu.Lock()
	if page < 1 {
		page = 1
	}
	if c.result.TotalPages > 0 && page > c.result.TotalPages {
		page = c.result.TotalPages
	}
	if page == c.page && c.status == StatusLoaded {
		c.mu.Unlock()
		return
	}
	c.page = page
	c.mu.Unlock()

	c.fetch(ctx)
}

// SetCategoryFilter はカテゴリフィルタを変更し、ページを1に戻して再取得する。
func (c *Controller) SetCategoryFilter(ctx context.Context, category string) {
	c.mu.Lock()
	c.category = category
	c.page = 1
	c.mu.Unlock()

	c.fetch(ctx)
}

// DeleteRecord は表示中のレコードを削除する。
// サーバーに永続化されていないレコード（ServerIDが空）はローカルで取り除くだけで、
// ネットワークアクセスは発生しない。永続化済みのレコードは削除APIを呼んだ後、
// ページ件数を正すために一覧を再取得する。
func (c *Controller) DeleteRecord(ctx context.Context, id string) error {
	c.mu.Lock()
	var target *Record
	index := -1
	for i := range c.result.Records {
		if c.result.Records[i].ID == id {
			target = &c.result.Records[i]
			index = i
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return fmt.Errorf("record not found: %s", id)
	}

	if target.ServerID == "" {
		c.result.Records = append(c.result.Records[:index], c.result.Records[index+1:]...)
		c.mu.Unlock()
		c.notify("success", "削除完了", "車両を削除しました。")
		return nil
	}

	serverID := target.ServerID
	c.mu.Unlock()

	if err := c.client.DeleteCar(ctx, serverID); err != nil {
		c.notify("error", "削除失敗", mutationErrorMessage(err, "車両の削除に失敗しました。"))
		return err
	}

	c.notify("success", "削除完了", "車両を削除しました。")
	c.fetch(ctx)
	return nil
}

// EditPayload は作成・編集フォームの送信内容。
// IDが空の場合は新規作成として扱う。Fieldsの数値は数値型でも文字列でもよい。
type EditPayload struct {
	ID        string
	Fields    map[string]any
	ImageURLs []string
}

// SubmitEdit は車両の作成または更新を送信する。
// makeとmodelはローカルで必須チェックされ、違反時はネットワークアクセスなしで
// エラーを返す。IDは送信ボディから除外され、エンドポイントの選択にだけ使われる。
// 成功時は一覧を再取得し、失敗時は表示状態を変更しない。
func (c *Controller) SubmitEdit(ctx context.Context, payload EditPayload) error {
	if toString(payload.Fields["make"], "") == "" || toString(payload.Fields["model"], "") == "" {
		err := errors.New("メーカーと車種は必須です")
		c.notify("error", "入力エラー", err.Error())
		return err
	}

	body := make(map[string]any, len(payload.Fields))
	for key, val := range payload.Fields {
		if key == "id" {
			continue
		}
		body[key] = val
	}

	var err error
	if payload.ID == "" {
		fields := make(map[string]string, len(body))
		for key, val := range body {
			fields[key] = toString(val, "")
		}
		_, err = c.client.CreateCar(ctx, fields, payload.ImageURLs)
	} else {
		_, err = c.client.UpdateCar(ctx, payload.ID, body)
	}

	if err != nil {
		c.notify("error", "保存失敗", mutationErrorMessage(err, "車両の保存に失敗しました。"))
		return err
	}

	c.notify("success", "保存完了", "車両を保存しました。")
	c.fetch(ctx)
	return nil
}

// Close は実行中のフェッチをキャンセルし、以降の結果反映を止める。
// 画面の破棄時に呼び出す。キャンセルされたフェッチはエラーとして扱われない。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// 完了間際のフェッチが結果を書き込まないよう世代を進める
	c.generation++
}

// fetch は一覧取得プロトコルを実行する。
// 実行中のリクエストをキャンセルしてから新しいリクエストを発行し、
// 取得完了時に自分より新しいリクエストが発行されていたら結果を破棄する。
func (c *Controller) fetch(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.generation++
	generation := c.generation
	page := c.page
	category := c.category
	c.status = StatusLoading
	c.mu.Unlock()

	// "all"はフィルタなしを意味し、パラメータ自体を送らない
	requestCategory := category
	if requestCategory == model.CategoryAll {
		requestCategory = ""
	}

	raw, err := c.client.ListCars(fetchCtx, page, c.pageSize, requestCategory)

	c.mu.Lock()
	if generation != c.generation {
		// 後続のリクエストに追い越された。結果もエラーも破棄する
		c.mu.Unlock()
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return
		}
		c.status = StatusErrored
		c.errMsg = fetchErrorMessage(err)
		message := c.errMsg
		c.mu.Unlock()
		c.notify("error", "取得失敗", message)
		return
	}

	result := normalizeResult(raw, page, c.localIDs.next)
	c.result = result
	c.page = result.Page
	c.status = StatusLoaded
	c.errMsg = ""
	c.mu.Unlock()
}

// fetchErrorMessage は一覧取得失敗時の表示メッセージを決定する。
// サーバーの構造化メッセージ→トランスポートエラー→汎用文言の順で決める。
func fetchErrorMessage(err error) string {
	var statusErr *adminclient.APIStatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fetchErrorFallback
}

// mutationErrorMessage は変更操作失敗時の表示メッセージを決定する。
func mutationErrorMessage(err error, fallback string) string {
	var statusErr *adminclient.APIStatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
