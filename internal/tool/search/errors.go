// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"errors"
	"fmt"
)

// 检索失败类别（对外稳定的 kind 标签）
const (
	KindRetrievalUnavailable = "RetrievalUnavailable" // 检索服务不可达或服务端错误
	KindDataStoreNotFound    = "DataStoreNotFound"    // 配置的数据存储不存在
	KindInvalidQuery         = "InvalidQuery"         // 查询格式非法
)

// RetrievalError 检索层类型化失败：kind 稳定、message 可读
type RetrievalError struct {
	Kind    string
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[retrieval] %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[retrieval] %s: %s", e.Kind, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError 创建检索错误
func NewRetrievalError(kind, message string, err error) *RetrievalError {
	return &RetrievalError{Kind: kind, Message: message, Err: err}
}

// AsRetrievalError 取出链上的 RetrievalError
func AsRetrievalError(err error) (*RetrievalError, bool) {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
