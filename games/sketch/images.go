/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
)

// DefaultImages is the reference pool used when none is configured.
var DefaultImages = []string{
	"https://images.unsplash.com/photo-1514888286974-6c03e2ca1dba?w=512",
	"https://images.unsplash.com/photo-1543466835-00a7907e9de1?w=512",
	"https://images.unsplash.com/photo-1501594907352-04cda38ebc29?w=512",
	"https://images.unsplash.com/photo-1518791841217-8f162f1e1131?w=512",
	"https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=512",
	"https://images.unsplash.com/photo-1490750967868-88aa4486c946?w=512",
	"https://images.unsplash.com/photo-1502082553048-f009c37129b9?w=512",
	"https://images.unsplash.com/photo-1474511320723-9a56873867b5?w=512",
}

// ImagePool hands out reference images.
type ImagePool struct {
	mu     sync.Mutex
	images []string
	rng    *rand.Rand
}

// NewImagePool copies images, dropping blanks and duplicates. A nil rng
// uses a randomly seeded source.
func NewImagePool(images []string, rng *rand.Rand) (*ImagePool, error) {
	seen := make(map[string]bool, len(images))
	pool := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" || seen[img] {
			continue
		}
		seen[img] = true
		pool = append(pool, img)
	}

	if len(pool) == 0 {
		return nil, errors.New("reference image pool is empty")
	}

	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &ImagePool{images: pool, rng: rng}, nil
}

// Len returns the number of distinct images.
func (p *ImagePool) Len() int {
	return len(p.images)
}

// Random picks uniformly from the whole pool.
func (p *ImagePool) Random() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.images[p.rng.IntN(len(p.images))]
}

// Next picks uniformly from every image except previous. When previous is
// the only image, it is returned again.
func (p *ImagePool) Next(previous string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := make([]string, 0, len(p.images))
	for _, img := range p.images {
		if img != previous {
			remaining = append(remaining, img)
		}
	}
	if len(remaining) == 0 {
		remaining = p.images
	}

	return remaining[p.rng.IntN(len(remaining))]
}
