// Package catalog 基于存储前缀结构枚举版本并解析更新
// 存储里的目录树就是索引，没有独立数据库
package catalog

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"release-hub/pkg/config"
	"release-hub/pkg/storage"
)

type Catalog struct {
	store storage.Backend
	cfg   config.ReleaseConfig
}

func New(store storage.Backend, cfg config.ReleaseConfig) *Catalog {
	if cfg.ListConcurrency <= 0 {
		cfg.ListConcurrency = 8
	}
	if cfg.UpdateSuffix == "" {
		cfg.UpdateSuffix = ".tar.gz"
	}
	return &Catalog{store: store, cfg: cfg}
}

func (c *Catalog) prefix(parts ...string) string {
	return strings.Join(append([]string{c.cfg.Channel}, parts...), "/")
}

// ListVersions 枚举 (target, arch[, format]) 下所有能解析为 SemVer 的版本目录
// format 为空时合并所有 format 下的版本
func (c *Catalog) ListVersions(ctx context.Context, target, arch, format string) ([]string, error) {
	var formats []string
	if format != "" {
		formats = []string{format}
	} else {
		var err error
		formats, err = c.store.ListChildren(ctx, c.prefix(target, arch))
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var versions []string
	for _, f := range formats {
		names, err := c.store.ListChildren(ctx, c.prefix(target, arch, f))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			// 不是版本号的目录直接忽略，不报错
			if _, err := semver.NewVersion(name); err != nil {
				continue
			}
			if !seen[name] {
				seen[name] = true
				versions = append(versions, name)
			}
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// ReleaseRow 管理列表的一行
// Degraded 表示元数据缺失或读取失败，发布时间不可信；
// 绝不能悄悄用 now() 顶上去假装正常
type ReleaseRow struct {
	Version     string    `json:"version"`
	Target      string    `json:"target"`
	Arch        string    `json:"arch"`
	Format      string    `json:"format"`
	PublishDate time.Time `json:"publishDate"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// ListReleases 全量枚举已知发布
// 各 target 子树相互独立，按固定并发度并行展开
func (c *Catalog) ListReleases(ctx context.Context) ([]ReleaseRow, error) {
	targets, err := c.store.ListChildren(ctx, c.prefix())
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		rows     []ReleaseRow
		firstErr error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, c.cfg.ListConcurrency)

	for _, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(target string) {
			defer wg.Done()
			defer func() { <-sem }()

			sub, err := c.walkTarget(ctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			rows = append(rows, sub...)
		}(target)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	// 发布时间倒序，相同时间按版本号倒序，保证输出稳定
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].PublishDate.Equal(rows[j].PublishDate) {
			return rows[i].PublishDate.After(rows[j].PublishDate)
		}
		return compareVersionDesc(rows[i].Version, rows[j].Version)
	})
	return rows, nil
}

// walkTarget 顺序展开单个 target 下的 arch/format/version 三层
func (c *Catalog) walkTarget(ctx context.Context, target string) ([]ReleaseRow, error) {
	var rows []ReleaseRow

	archs, err := c.store.ListChildren(ctx, c.prefix(target))
	if err != nil {
		return nil, err
	}
	for _, arch := range archs {
		formats, err := c.store.ListChildren(ctx, c.prefix(target, arch))
		if err != nil {
			return nil, err
		}
		for _, format := range formats {
			versions, err := c.store.ListChildren(ctx, c.prefix(target, arch, format))
			if err != nil {
				return nil, err
			}
			for _, version := range versions {
				if _, err := semver.NewVersion(version); err != nil {
					continue
				}
				row, ok, err := c.buildRow(ctx, target, arch, format, version)
				if err != nil {
					return nil, err
				}
				if ok {
					rows = append(rows, row)
				}
			}
		}
	}
	return rows, nil
}

// buildRow 读取版本目录中规范制品的元数据
// 目录存在但没有文件时跳过 (ok=false)
func (c *Catalog) buildRow(ctx context.Context, target, arch, format, version string) (ReleaseRow, bool, error) {
	file, err := c.pickArtifact(ctx, c.prefix(target, arch, format, version), "")
	if err != nil {
		return ReleaseRow{}, false, err
	}
	if file == "" {
		return ReleaseRow{}, false, nil
	}

	row := ReleaseRow{Version: version, Target: target, Arch: arch, Format: format}

	path := c.prefix(target, arch, format, version, file)
	meta, err := c.store.GetMetadata(ctx, path)
	if err != nil || meta == nil {
		// 读失败可以降级，数据损坏必须冒泡
		if storage.IsCorrupt(err) {
			return ReleaseRow{}, false, err
		}
		if err != nil {
			log.Printf("[Catalog] metadata read failed for %s: %v (degraded)", path, err)
		}
		row.Degraded = true
		return row, true, nil
	}
	row.PublishDate = meta.PublishDate
	return row, true, nil
}

// pickArtifact 在版本目录中确定规范制品文件
// 按文件名字典序取最小，确定性与后端列举顺序无关；
// suffix 非空时先按后缀过滤
func (c *Catalog) pickArtifact(ctx context.Context, versionPrefix, suffix string) (string, error) {
	files, err := c.store.ListChildren(ctx, versionPrefix)
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, f := range files {
		if suffix != "" && !strings.HasSuffix(f, suffix) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

func compareVersionDesc(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a > b
	}
	return va.GreaterThan(vb)
}
