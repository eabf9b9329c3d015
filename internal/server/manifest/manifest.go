// Package manifest 组装自动更新客户端消费的 JSON
package manifest

import (
	"fmt"
	"strings"
	"time"

	"release-hub/internal/server/catalog"
)

// DefaultSignature 没有签名可用时的兜底 minisign 公钥注释
// 客户端要求 signature 字段永远存在
const DefaultSignature = "dW50cnVzdGVkIGNvbW1lbnQ6IG1pbmlzaWduIHB1YmxpYyBrZXk6IDlFQzBCQkEwM0U4NzA1NzkKUldSNUJZYytvTHZBbnVGUERLcityOVVObEY5L09tc25YdGtoNVh5Vll6WXdHN3R1MG4xTkh2cmwK"

// PlatformEntry 单平台的下载入口
type PlatformEntry struct {
	Signature string `json:"signature"`
	URL       string `json:"url"`
}

// Update 自动更新 Manifest (Tauri updater 兼容)
type Update struct {
	Version   string                   `json:"version"`
	Notes     string                   `json:"notes"`
	PubDate   string                   `json:"pub_date"`
	Platforms map[string]PlatformEntry `json:"platforms"`
}

// Builder 持有生成绝对下载链接所需的基础配置
// URL 必须是绝对地址：更新客户端单独拉取它，没有页面上下文可以补全相对路径
type Builder struct {
	baseURL     string
	productName string
}

func NewBuilder(baseURL, productName string) *Builder {
	return &Builder{
		baseURL:     strings.TrimRight(baseURL, "/"),
		productName: productName,
	}
}

func (b *Builder) downloadURL(storagePath string) string {
	return b.baseURL + "/api/download/" + storagePath
}

// BuildUpdate 从解析结果生成更新 Manifest
func (b *Builder) BuildUpdate(res *catalog.Resolved, target, arch string) *Update {
	signature := DefaultSignature
	notes := fmt.Sprintf("Release version %s", res.Coord.Version)
	pubDate := time.Now().UTC().Format(time.RFC3339)

	if res.Meta != nil {
		if res.Meta.Signature != "" {
			signature = res.Meta.Signature
		}
		if res.Meta.Notes != "" {
			notes = res.Meta.Notes
		}
		if !res.Meta.PublishDate.IsZero() {
			pubDate = res.Meta.PublishDate.UTC().Format(time.RFC3339)
		}
	}

	return &Update{
		Version: res.Coord.Version,
		Notes:   notes,
		PubDate: pubDate,
		Platforms: map[string]PlatformEntry{
			target + "-" + arch: {
				Signature: signature,
				URL:       b.downloadURL(res.Path),
			},
		},
	}
}

// BuildNoUpdate 没有更新时也要返回结构完整的 Manifest
// 客户端把"无更新"当正常响应处理，而不是请求失败
func (b *Builder) BuildNoUpdate(target, arch, current string) *Update {
	fileName := fmt.Sprintf("%s.%s.%s.app.tar.gz", b.productName, current, arch)
	return &Update{
		Version: current,
		Notes:   "No updates available",
		PubDate: time.Now().UTC().Format(time.RFC3339),
		Platforms: map[string]PlatformEntry{
			target + "-" + arch: {
				Signature: DefaultSignature,
				URL:       b.downloadURL(strings.Join([]string{target, arch, current, fileName}, "/")),
			},
		},
	}
}

// Recommendation 推荐接口的扁平响应
// 与 Tauri Manifest 不同，url/signature 直接放在顶层，
// 供非 updater 的调用方 (官网下载页等) 消费
type Recommendation struct {
	Version        string `json:"version"`
	PubDate        string `json:"pub_date"`
	URL            string `json:"url"`
	Signature      string `json:"signature"`
	Notes          string `json:"notes"`
	CurrentVersion string `json:"current_version"`
	Target         string `json:"target"`
}

// BuildRecommendation 从解析结果生成扁平推荐响应
func (b *Builder) BuildRecommendation(res *catalog.Resolved, target, current string) *Recommendation {
	rec := &Recommendation{
		Version:        res.Coord.Version,
		PubDate:        time.Now().UTC().Format(time.RFC3339),
		URL:            b.downloadURL(res.Path),
		Signature:      DefaultSignature,
		Notes:          fmt.Sprintf("Release version %s", res.Coord.Version),
		CurrentVersion: current,
		Target:         target,
	}
	if res.Meta != nil {
		if res.Meta.Signature != "" {
			rec.Signature = res.Meta.Signature
		}
		if res.Meta.Notes != "" {
			rec.Notes = res.Meta.Notes
		}
		if !res.Meta.PublishDate.IsZero() {
			rec.PubDate = res.Meta.PublishDate.UTC().Format(time.RFC3339)
		}
	}
	return rec
}

// BuildNoRecommendation 无更新时回显客户端当前版本
func (b *Builder) BuildNoRecommendation(target, arch, current string) *Recommendation {
	fileName := fmt.Sprintf("%s.%s.%s.app.tar.gz", b.productName, current, arch)
	return &Recommendation{
		Version:        current,
		PubDate:        time.Now().UTC().Format(time.RFC3339),
		URL:            b.downloadURL(strings.Join([]string{target, arch, current, fileName}, "/")),
		Signature:      DefaultSignature,
		Notes:          "No updates available",
		CurrentVersion: current,
		Target:         target,
	}
}
