// Package relkey 负责发布坐标与存储路径的互转
// 纯函数，无 IO，不感知存储后端
package relkey

import (
	"errors"
	"fmt"
	"strings"
)

// Shape 路径形态
// 历史上存在两套不兼容的目录深度，必须由调用方显式声明，
// 不允许只看段数瞎猜
type Shape int

const (
	// ShapeCatalog 版本目录形态: {channel}/{target}/{arch}/{format}/{version}/{filename}
	ShapeCatalog Shape = iota + 1
	// ShapePlain 简化分发形态: {target}/{arch}/{version}/{filename}
	ShapePlain
)

const (
	catalogDepth = 6
	plainDepth   = 4
)

// ErrAmbiguousShape 路径深度与声明的形态不符，且恰好能按另一形态解释
var ErrAmbiguousShape = errors.New("relkey: path depth matches a different shape")

// Coordinate 一次发布的完整坐标
// Version 必须是 SemVer (由 catalog 层校验)，其余字段是路径安全的不透明串
type Coordinate struct {
	Channel  string
	Target   string
	Arch     string
	Format   string
	Version  string
	Filename string
}

// EncodeCatalog 编码为版本目录路径
func (c Coordinate) EncodeCatalog() (string, error) {
	segs := []string{c.Channel, c.Target, c.Arch, c.Format, c.Version, c.Filename}
	if err := validateSegments(segs); err != nil {
		return "", err
	}
	return strings.Join(segs, "/"), nil
}

// EncodePlain 编码为简化分发路径 (不含 channel/format)
func (c Coordinate) EncodePlain() (string, error) {
	segs := []string{c.Target, c.Arch, c.Version, c.Filename}
	if err := validateSegments(segs); err != nil {
		return "", err
	}
	return strings.Join(segs, "/"), nil
}

// Decode 按显式指定的形态解码路径
func Decode(shape Shape, path string) (Coordinate, error) {
	segs := strings.Split(path, "/")
	if err := validateSegments(segs); err != nil {
		return Coordinate{}, err
	}

	switch shape {
	case ShapeCatalog:
		if len(segs) != catalogDepth {
			return Coordinate{}, depthError(len(segs), catalogDepth, plainDepth)
		}
		return Coordinate{
			Channel:  segs[0],
			Target:   segs[1],
			Arch:     segs[2],
			Format:   segs[3],
			Version:  segs[4],
			Filename: segs[5],
		}, nil
	case ShapePlain:
		if len(segs) != plainDepth {
			return Coordinate{}, depthError(len(segs), plainDepth, catalogDepth)
		}
		return Coordinate{
			Target:   segs[0],
			Arch:     segs[1],
			Version:  segs[2],
			Filename: segs[3],
		}, nil
	default:
		return Coordinate{}, fmt.Errorf("relkey: unknown shape %d", shape)
	}
}

func depthError(got, want, other int) error {
	if got == other {
		return fmt.Errorf("relkey: depth %d: %w", got, ErrAmbiguousShape)
	}
	return fmt.Errorf("relkey: bad path depth %d (want %d)", got, want)
}

// validateSegments 路径安全字符集校验
// encode 宁可失败也不产出可穿越的路径
func validateSegments(segs []string) error {
	for _, s := range segs {
		if s == "" {
			return errors.New("relkey: empty segment")
		}
		if s == "." || s == ".." {
			return fmt.Errorf("relkey: traversal segment %q", s)
		}
		if strings.ContainsAny(s, "/\\") {
			return fmt.Errorf("relkey: separator in segment %q", s)
		}
		for _, r := range s {
			if r < 0x20 || r == 0x7f {
				return fmt.Errorf("relkey: control char in segment %q", s)
			}
		}
	}
	return nil
}

// ValidateSegment 单段校验，供 Handler 在拼路径前检查 URL 参数
func ValidateSegment(s string) error {
	return validateSegments([]string{s})
}
