package protocol

// CRC16 is the CCITT checksum used on every frame (init 0xFFFF, reflected,
// no final xor). It matches the avr-libc crc_ccitt_update the MCU side uses.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// appendCRC appends the checksum of data high byte first
func appendCRC(dst, data []byte) []byte {
	crc := CRC16(data)
	return append(dst, byte(crc>>8), byte(crc))
}
