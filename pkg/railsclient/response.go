package railsclient

import (
	"encoding/json"
	"fmt"
)

// バックエンドおよびクライアントが返すメッセージコード。
const (
	// MessageAuthSuccess は認証成功を表す。
	MessageAuthSuccess = "auth_success"
	// MessageUserInfoSuccess はユーザー情報の取得成功を表す。
	MessageUserInfoSuccess = "user_info_success"
	// MessageNotAuthenticated は未認証のため呼び出しを行わなかったことを表す。
	MessageNotAuthenticated = "not_authenticated"
	// MessageCurlError は通信レベルのエラー（接続失敗、タイムアウト、TLS）を表す。
	MessageCurlError = "curl_error"
	// MessageInvalidJSON はレスポンスボディがJSONオブジェクトとして解釈できないことを表す。
	MessageInvalidJSON = "invalid_json"
)

// Response はすべてのAPI呼び出しの正規化された結果。
// Messageは常に空でない。
type Response struct {
	// Message は結果を表すステータスコード（例: "auth_success"）。
	Message string `json:"message"`
	// Errors は人間が読めるエラーメッセージの一覧。
	Errors []string `json:"errors,omitempty"`
	// Data はエンドポイント固有のペイロード。
	Data json.RawMessage `json:"data,omitempty"`
	// RawResponse はJSONのデコードに失敗した場合の元のレスポンスボディ。
	RawResponse string `json:"raw_response,omitempty"`
	// HTTPCode はJSONのデコードに失敗した場合のHTTPステータスコード。
	HTTPCode int `json:"http_code,omitempty"`
	// Fields はバックエンドが返したトップレベルのフィールドをそのまま保持する。
	Fields map[string]json.RawMessage `json:"-"`
}

// OK はMessageが指定された成功コードと一致するかを返す。
func (r *Response) OK(successMessage string) bool {
	return r != nil && r.Message == successMessage
}

// DecodeData はDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](r *Response) (*T, error) {
	if r == nil || len(r.Data) == 0 {
		return nil, fmt.Errorf("レスポンスにdataが含まれていない")
	}
	var data T
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, fmt.Errorf("dataのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}

func notAuthenticated(reason string) *Response {
	return &Response{
		Message: MessageNotAuthenticated,
		Errors:  []string{reason},
	}
}

func transportError(err error) *Response {
	return &Response{
		Message: MessageCurlError,
		Errors:  []string{err.Error()},
	}
}

func invalidJSON(body []byte, httpCode int) *Response {
	return &Response{
		Message:     MessageInvalidJSON,
		Errors:      []string{"Invalid JSON response from server"},
		RawResponse: string(body),
		HTTPCode:    httpCode,
	}
}

// decodeResponse はレスポンスボディをResponseに変換する。
// JSONオブジェクトでない場合、または文字列のmessageを持たない場合はinvalid_jsonとなる。
func decodeResponse(body []byte, httpCode int) *Response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return invalidJSON(body, httpCode)
	}

	var message string
	raw, ok := fields["message"]
	if !ok || json.Unmarshal(raw, &message) != nil || message == "" {
		return invalidJSON(body, httpCode)
	}

	resp := &Response{
		Message: message,
		Fields:  fields,
	}
	if raw, ok := fields["errors"]; ok {
		// 文字列配列以外のerrorsはFieldsにのみ残す
		var errs []string
		if json.Unmarshal(raw, &errs) == nil {
			resp.Errors = errs
		}
	}
	if raw, ok := fields["data"]; ok && string(raw) != "null" {
		resp.Data = raw
	}
	return resp
}
