package catalog

import (
	"context"
	"errors"
	"log"

	"github.com/Masterminds/semver/v3"

	"release-hub/pkg/relkey"
	"release-hub/pkg/storage"
)

// ErrBadCurrentVersion 客户端上报的当前版本号不是合法 SemVer
var ErrBadCurrentVersion = errors.New("catalog: current version is not valid semver")

// Resolved 解析出的一次可下发更新
type Resolved struct {
	Coord relkey.Coordinate
	Path  string // 存储路径 (catalog 形态)
	Meta  *storage.Metadata
	// Degraded: 元数据缺失或读取失败
	// 更新仍可下发，但签名/说明只能用兜底值
	Degraded bool
}

// ResolveLatest 找出严格比客户端当前版本新的最新更新包
// 没有更新、版本目录里没有更新包文件，都返回 (nil, nil)
func (c *Catalog) ResolveLatest(ctx context.Context, target, arch, current string) (*Resolved, error) {
	cur, err := semver.NewVersion(current)
	if err != nil {
		if !c.cfg.OfferLatestOnBadVersion {
			log.Printf("[Resolver] unparsable client version %q for %s/%s", current, target, arch)
			return nil, ErrBadCurrentVersion
		}
		// 显式配置下按 0.0.0 处理，等价于"给我最新的"
		cur = semver.MustParse("0.0.0")
	}

	format := c.cfg.UpdateFormat
	names, err := c.store.ListChildren(ctx, c.prefix(target, arch, format))
	if err != nil {
		return nil, err
	}

	// 取候选集中的最大版本
	// 两个目录名归一化后相同 (如 1.0 与 1.0.0) 属于数据冲突，
	// 固定取原始串字典序较小者，保证结果确定
	var bestRaw string
	var best *semver.Version
	for _, name := range names {
		v, err := semver.NewVersion(name)
		if err != nil {
			continue // 非版本目录，忽略
		}
		switch {
		case best == nil, v.GreaterThan(best):
			best, bestRaw = v, name
		case v.Equal(best) && name < bestRaw:
			bestRaw = name
		}
	}

	if best == nil || !best.GreaterThan(cur) {
		return nil, nil
	}

	// 版本定了再在目录里挑更新包文件
	file, err := c.pickArtifact(ctx, c.prefix(target, arch, format, bestRaw), c.cfg.UpdateSuffix)
	if err != nil {
		return nil, err
	}
	if file == "" {
		// 目录存在但没有更新包，视为无更新可宣告
		return nil, nil
	}

	coord := relkey.Coordinate{
		Channel:  c.cfg.Channel,
		Target:   target,
		Arch:     arch,
		Format:   format,
		Version:  bestRaw,
		Filename: file,
	}
	path, err := coord.EncodeCatalog()
	if err != nil {
		return nil, err
	}

	res := &Resolved{Coord: coord, Path: path}
	meta, err := c.store.GetMetadata(ctx, path)
	if err != nil || meta == nil {
		// 损坏的旁路记录是数据完整性事件，必须向上冒泡，不能装作"缺失"
		if storage.IsCorrupt(err) {
			return nil, err
		}
		if err != nil {
			log.Printf("[Resolver] metadata read failed for %s: %v (degraded)", path, err)
		}
		res.Degraded = true
		return res, nil
	}
	res.Meta = meta
	return res, nil
}
