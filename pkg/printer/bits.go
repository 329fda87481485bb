package printer

func readBitN(v byte, offset uint8) bool {
	return v&(1<<offset) > 0
}

func writeBitN(v byte, offset uint8, bit bool) byte {
	if bit {
		return v | 1<<offset
	}
	return v &^ (1 << offset)
}
