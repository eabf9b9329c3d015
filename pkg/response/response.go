package response

import (
	"encoding/json"
	"log"
	"net/http"

	"release-hub/pkg/code"
	"release-hub/pkg/e"
)

// ErrorBody 错误响应体
// error 字段是对外契约，客户端按此字段判断失败原因
type ErrorBody struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// JSON 按指定状态码输出 JSON
func JSON(w http.ResponseWriter, httpStatus int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(v)
}

// Success 成功响应 (HTTP 200)
func Success(w http.ResponseWriter, v interface{}) {
	JSON(w, http.StatusOK, v)
}

// Error 错误响应，业务错误码映射为真实 HTTP 状态码
func Error(w http.ResponseWriter, err error) {
	// 1. 自定义业务错误
	if bizErr, ok := err.(*e.CodeError); ok {
		if bizErr.Raw != nil {
			log.Printf("[BizError] %s | Raw: %v", bizErr.Msg, bizErr.Raw)
		}
		JSON(w, code.HTTPStatus(bizErr.Code), ErrorBody{Code: bizErr.Code, Error: bizErr.Msg})
		return
	}

	// 2. 普通系统错误
	log.Printf("[SysError] %v", err)
	JSON(w, http.StatusInternalServerError, ErrorBody{Code: code.ServerError, Error: code.GetMsg(code.ServerError)})
}
