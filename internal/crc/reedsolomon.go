package crc

// Reed-Solomon GF(256) systematic encoder/checker used by LTO-family
// drives (§4.3, grounded on original_source's reed_solomon_crc.h, which
// declares rs_gf256_enc/rs_gf256_check operating in place on a buffer
// with a trailing fixed-size check). This is a standard systematic RS
// code over GF(256) with the primitive polynomial x^8+x^4+x^3+x^2+1
// (0x11D) and nsym=4 parity bytes, computed as the remainder of the
// message polynomial (shifted by x^nsym) divided by the generator
// polynomial whose roots are alpha^0..alpha^(nsym-1).

const (
	gfPrimitivePoly = 0x11D
	gfFieldSize     = 256
	rsParitySymbols = TrailerSize
)

var (
	gfExp [512]byte
	gfLog [256]byte
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = byte(i)

		x <<= 1
		if x&gfFieldSize != 0 {
			x ^= gfPrimitivePoly
		}
	}

	for i := 255; i < 512; i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}

	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

// generatorPoly returns the coefficients (highest degree first, monic)
// of the RS generator polynomial for rsParitySymbols roots starting at
// alpha^0, matching the classic systematic RS construction.
func generatorPoly() []byte {
	g := []byte{1}

	for i := 0; i < rsParitySymbols; i++ {
		g = polyMul(g, []byte{1, gfExp[i]})
	}

	return g
}

// polyMul convolves two polynomials given highest-degree-term first.
func polyMul(p, q []byte) []byte {
	out := make([]byte, len(p)+len(q)-1)

	for j, qc := range q {
		for i, pc := range p {
			out[i+j] ^= gfMul(pc, qc)
		}
	}

	return out
}

var generator = generatorPoly()

// rsRemainder computes the RS parity bytes for msg by polynomial long
// division in GF(256): remainder of msg(x) * x^nsym mod generator(x).
// The feedback register holds exactly rsParitySymbols coefficients
// (the generator's degree, i.e. generator minus its leading monic term).
func rsRemainder(msg []byte) []byte {
	remainder := make([]byte, rsParitySymbols)
	genTail := generator[1:]

	for _, b := range msg {
		factor := b ^ remainder[0]
		copy(remainder, remainder[1:])
		remainder[len(remainder)-1] = 0

		if factor == 0 {
			continue
		}

		for i, gc := range genTail {
			remainder[i] ^= gfMul(gc, factor)
		}
	}

	return remainder
}

// encodeReedSolomon computes the parity for buf[:len(buf)-TrailerSize]
// and stores it in the trailing TrailerSize bytes.
func encodeReedSolomon(buf []byte) {
	payload := buf[:len(buf)-TrailerSize]
	parity := rsRemainder(payload)
	copy(buf[len(buf)-TrailerSize:], parity)
}

// verifyReedSolomon recomputes parity over the payload and compares it
// to the stored trailer.
func verifyReedSolomon(buf []byte) bool {
	payload := buf[:len(buf)-TrailerSize]
	want := buf[len(buf)-TrailerSize:]
	got := rsRemainder(payload)

	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}

	return true
}
