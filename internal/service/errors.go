package service

import (
	"errors"

	"ragspace-go/pkg/extract"
)

// 业务层统一错误定义，由 handler 层映射为对应的 HTTP 状态码。
var (
	// ErrNotFound 目标资源不存在。
	ErrNotFound = errors.New("资源不存在")
	// ErrUnauthorized 当前用户无权访问目标资源。
	ErrUnauthorized = errors.New("无权访问该资源")
	// ErrConflict 资源已存在，例如重复注册的邮箱或重名文档。
	ErrConflict = errors.New("资源已存在")
	// ErrInvalidCredentials 登录凭证错误。
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	// ErrUpstream 依赖的上游服务（抽取、嵌入、大模型）调用失败。
	ErrUpstream = errors.New("上游服务调用失败")
	// ErrUnsupportedFormat 文件格式不在支持范围内。
	ErrUnsupportedFormat = extract.ErrUnsupportedFormat
	// ErrUnsupportedModel 请求的模型没有对应的提供方。
	ErrUnsupportedModel = errors.New("不支持的模型")
)
