package audio

// FloatToPCM16 converts float samples to little-endian int16 PCM by scaling
// with 32768 and truncating toward zero.
//
// There is no clipping: values at or beyond ±1.0 wrap with int16 semantics,
// so 1.0 becomes -32768. Callers that need clean saturation must clamp first.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		s := int16(int32(f * 32768))
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// PCM16ToFloat is the mono inverse of [FloatToPCM16]. A trailing odd byte is
// ignored.
func PCM16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768
	}
	return out
}

// ResampleFloat resamples mono float samples from srcRate to dstRate using
// linear interpolation. If the rates match the input is returned unchanged.
func ResampleFloat(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstLen {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate. It is a
// thin wrapper over [ResampleFloat] for callers holding raw PCM.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	return FloatToPCM16(clampUnit(ResampleFloat(PCM16ToFloat(pcm), srcRate, dstRate)))
}

// clampUnit limits samples to the range FloatToPCM16 can represent without
// wrapping. Interpolation never exceeds its inputs, but the upper bound of
// PCM16ToFloat output (32767/32768) must stay below 1.0.
func clampUnit(samples []float32) []float32 {
	const hi = float32(32767) / 32768
	for i, s := range samples {
		samples[i] = max(-1, min(hi, s))
	}
	return samples
}
