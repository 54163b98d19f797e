package codec

import (
	"image"
	"sort"
)

// rgb is a packed 8-bit color sample.
type rgb struct {
	r, g, b uint8
}

// colorCount is one distinct color and its pixel population.
type colorCount struct {
	color rgb
	count int
}

// cluster is one quantized palette entry with its pixel population.
type cluster struct {
	R, G, B uint8
	Count   int
}

// quantize reduces the image's color space to at most n representative
// colors using median cut over the distinct-color histogram: the box
// with the widest channel range is repeatedly split at its
// population-weighted median until n boxes exist or every box holds a
// single distinct color. Results are ordered by population, descending.
func quantize(img image.Image, n int) []cluster {
	bounds := img.Bounds()

	histogram := make(map[rgb]int)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			histogram[rgb{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}]++
		}
	}

	if len(histogram) == 0 || n <= 0 {
		return nil
	}

	all := make([]colorCount, 0, len(histogram))
	for c, count := range histogram {
		all = append(all, colorCount{color: c, count: count})
	}

	boxes := [][]colorCount{all}
	for len(boxes) < n {
		idx, channel, widest := -1, 0, 0
		for i, box := range boxes {
			rng, ch := boxRange(box)
			if rng > widest {
				widest, idx, channel = rng, i, ch
			}
		}

		// Every remaining box is a single color; nothing left to split.
		if idx < 0 {
			break
		}

		left, right := splitBox(boxes[idx], channel)
		boxes[idx] = left
		boxes = append(boxes, right)
	}

	clusters := make([]cluster, 0, len(boxes))
	for _, box := range boxes {
		clusters = append(clusters, averageBox(box))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})

	return clusters
}

// boxRange returns the widest channel range within the box and which
// channel it is (0=r, 1=g, 2=b). A zero range means the box holds a
// single distinct color.
func boxRange(box []colorCount) (int, int) {
	minC, maxC := box[0].color, box[0].color
	for _, e := range box {
		c := e.color
		if c.r < minC.r {
			minC.r = c.r
		}
		if c.g < minC.g {
			minC.g = c.g
		}
		if c.b < minC.b {
			minC.b = c.b
		}
		if c.r > maxC.r {
			maxC.r = c.r
		}
		if c.g > maxC.g {
			maxC.g = c.g
		}
		if c.b > maxC.b {
			maxC.b = c.b
		}
	}

	ranges := [3]int{
		int(maxC.r) - int(minC.r),
		int(maxC.g) - int(minC.g),
		int(maxC.b) - int(minC.b),
	}

	widest, channel := 0, -1
	for ch, rng := range ranges {
		if rng > widest {
			widest, channel = rng, ch
		}
	}

	if channel < 0 {
		return 0, 0
	}

	return widest, channel
}

// splitBox sorts the box along the given channel and cuts it at the
// population-weighted median. Callers must only pass boxes with a
// nonzero range, which guarantees at least two distinct colors and a
// nonempty half on each side.
func splitBox(box []colorCount, channel int) ([]colorCount, []colorCount) {
	sort.Slice(box, func(i, j int) bool {
		return channelValue(box[i].color, channel) < channelValue(box[j].color, channel)
	})

	total := 0
	for _, e := range box {
		total += e.count
	}

	cut, cum := 0, 0
	for i, e := range box {
		cum += e.count
		if cum >= total/2 {
			cut = i + 1
			break
		}
	}

	// Keep both halves nonempty.
	if cut < 1 {
		cut = 1
	}
	if cut >= len(box) {
		cut = len(box) - 1
	}

	return box[:cut], box[cut:]
}

func channelValue(c rgb, channel int) uint8 {
	switch channel {
	case 0:
		return c.r
	case 1:
		return c.g
	default:
		return c.b
	}
}

// averageBox collapses a box to its population-weighted mean color.
func averageBox(box []colorCount) cluster {
	var sumR, sumG, sumB, total uint64
	for _, e := range box {
		n := uint64(e.count)
		sumR += uint64(e.color.r) * n
		sumG += uint64(e.color.g) * n
		sumB += uint64(e.color.b) * n
		total += n
	}

	return cluster{
		R:     uint8(sumR / total),
		G:     uint8(sumG / total),
		B:     uint8(sumB / total),
		Count: int(total),
	}
}
