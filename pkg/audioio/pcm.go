package audioio

import "math"

// AppendPCM16LE appends samples to dst as 16-bit signed little-endian PCM.
func AppendPCM16LE(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}

// DecodePCM16LE appends the samples encoded in data to dst. A trailing odd
// byte is ignored.
func DecodePCM16LE(dst []int16, data []byte) []int16 {
	for i := 0; i+1 < len(data); i += 2 {
		dst = append(dst, int16(data[i])|int16(data[i+1])<<8)
	}
	return dst
}

// Float32ToInt16 converts normalized float samples into dst, clamping to
// [-1, 1]. It returns the number of samples converted.
func Float32ToInt16(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		v := src[i]
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		dst[i] = int16(math.Round(float64(v) * 32767))
	}
	return n
}

// CalculateRMS calculates the root mean square of samples.
// Returns a value between 0.0 and 1.0.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum/float64(len(samples))) / 32767
}
