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

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig 模型请求限流配置
type RateLimitConfig struct {
	RequestsPerMinute float64 // 每分钟请求数，<=0 表示不限
	MaxConcurrent     int     // 最大并发请求数，<=0 表示不限
}

// RateLimiter 模型请求限流器：RPS + 并发双重控制
type RateLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewRateLimiter 创建限流器；零值配置返回放行一切的限流器
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(cfg.RequestsPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
		l.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return l
}

// Acquire 等待获得一次请求额度；ctx 取消时立即返回
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if l.requestLimiter != nil {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			if l.semaphore != nil {
				<-l.semaphore
			}
			return err
		}
	}
	return nil
}

// Release 归还并发额度，与 Acquire 成对调用
func (l *RateLimiter) Release() {
	if l == nil || l.semaphore == nil {
		return
	}
	<-l.semaphore
}
