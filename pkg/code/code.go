package code

import "net/http"

// ====================================================
// 错误码定义
// ====================================================

const (
	// 0: 成功
	Success = 0

	// 10xxx: 通用错误
	ServerError      = 10001
	ParamError       = 10002
	DatabaseError    = 10003
	MethodNotAllowed = 10005
	InvalidJSON      = 10006
	Unauthorized     = 10007 // Token 缺失或不匹配

	// 40xxx: 发布制品管理
	ReleaseNotFound   = 40001 // 制品或版本不存在
	UploadFailed      = 40002
	BadVersion        = 40003 // 版本号不符合 SemVer
	BadCoordinate     = 40004 // 路径坐标缺失或含非法字符
	StorageFailed     = 40005 // 后端存储读写失败 (可重试)
	StorageCorruption = 40006 // 元数据与内容不一致，数据完整性事件

	// 50xxx: 下载口令
	PasscodeInvalid = 50001 // 口令不存在或已过期
)

// ====================================================
// 错误信息映射
// ====================================================

var Msg = map[int]string{
	Success:          "操作成功",
	ServerError:      "服务器内部错误",
	ParamError:       "参数错误",
	DatabaseError:    "数据库操作失败",
	MethodNotAllowed: "不支持该请求方法",
	InvalidJSON:      "无效的 JSON 格式",
	Unauthorized:     "未授权，请携带有效 Token",

	ReleaseNotFound:   "制品不存在",
	UploadFailed:      "制品上传失败",
	BadVersion:        "版本号格式无效",
	BadCoordinate:     "发布坐标无效",
	StorageFailed:     "存储后端操作失败",
	StorageCorruption: "存储数据不一致",

	PasscodeInvalid: "下载口令无效或已过期",
}

// httpStatus 业务错误码到 HTTP 状态码的映射
// 自动更新客户端按状态码区分行为，不能全部返回 200
var httpStatus = map[int]int{
	Success:          http.StatusOK,
	ServerError:      http.StatusInternalServerError,
	ParamError:       http.StatusBadRequest,
	DatabaseError:    http.StatusInternalServerError,
	MethodNotAllowed: http.StatusMethodNotAllowed,
	InvalidJSON:      http.StatusBadRequest,
	Unauthorized:     http.StatusUnauthorized,

	ReleaseNotFound:   http.StatusNotFound,
	UploadFailed:      http.StatusInternalServerError,
	BadVersion:        http.StatusBadRequest,
	BadCoordinate:     http.StatusBadRequest,
	StorageFailed:     http.StatusInternalServerError,
	StorageCorruption: http.StatusInternalServerError,

	PasscodeInvalid: http.StatusUnauthorized,
}

// GetMsg 获取错误码对应的默认信息
func GetMsg(c int) string {
	msg, ok := Msg[c]
	if ok {
		return msg
	}
	return Msg[ServerError]
}

// HTTPStatus 获取错误码对应的 HTTP 状态码
func HTTPStatus(c int) int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
