package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一API响应结构
type Response struct {
	Code    int         `json:"code"`             // 状态码
	Message string      `json:"message"`          // 消息
	Data    interface{} `json:"data"`             // 数据
	Success bool        `json:"success"`          // 是否成功
	Source  string      `json:"source,omitempty"` // 出错的外部依赖（database / chat / embedding）
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		Success: true,
	})
}

// Error 返回错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
		Success: false,
	})
}

// ErrorWithSource 返回带依赖来源的错误响应
func ErrorWithSource(c *gin.Context, code int, source, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
		Success: false,
		Source:  source,
	})
}

// BadRequest 返回400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// InternalServerError 返回500错误
func InternalServerError(c *gin.Context, message string) {
	if message == "" {
		message = "服务器内部错误"
	}
	Error(c, http.StatusInternalServerError, message)
}

// BadGateway 返回502错误，外部依赖不可用
func BadGateway(c *gin.Context, source, message string) {
	ErrorWithSource(c, http.StatusBadGateway, source, message)
}

// ServiceUnavailable 返回503错误，模型未就绪
func ServiceUnavailable(c *gin.Context, source, message string) {
	ErrorWithSource(c, http.StatusServiceUnavailable, source, message)
}
