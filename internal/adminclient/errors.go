package adminclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIStatusError はサーバーが返した非2xxレスポンスを表す。
// 統一エラーフォーマット（code, message, category, action）のボディを保持する。
type APIStatusError struct {
	StatusCode int
	Code       string
	Message    string
	Category   string
	Action     string
}

// Error はerrorインターフェースを実装する。
func (e *APIStatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// newAPIStatusError はレスポンスからAPIStatusErrorを構築する。
// ボディが統一エラーフォーマットでない場合もステータスコードだけは保持する。
func newAPIStatusError(resp *http.Response) *APIStatusError {
	apiErr := &APIStatusError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var parsed struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	apiErr.Code = parsed.Code
	apiErr.Message = parsed.Message
	apiErr.Category = parsed.Category
	apiErr.Action = parsed.Action
	return apiErr
}
