// Package layoutio implements the version=1 layout exchange format from
// spec §6: encode a grid's machines and connections to a portable form,
// and decode one back into fresh model values a caller can feed to
// grid.New/Place/AddConnection. It performs no grid construction itself —
// that stays the caller's job, same division of labor as the teacher's
// internal/storage/codec.go kept between marshaling and genome assembly.
package layoutio
