package layout

// Sentinel is the magic value the producer stores once the region is
// initialised.
const Sentinel uint32 = 0xABCD

// IsValid is the validity gate: the producer is running and has located its
// target process. A false result means none of the other fields may be
// trusted for that read.
func IsValid(h Header) bool {
	return h.Magic == Sentinel && h.BaseAddress != 0
}
