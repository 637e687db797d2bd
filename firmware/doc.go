// Package firmware loads raw flash images for Bouffalo Lab chips.
//
// # Image Layout
//
// An image is a plain binary written verbatim to flash. Before transfer the
// image is zero-padded to a multiple of 16 bytes, the write granularity of
// the boot ROM:
//
//	img, err := firmware.Load("app.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes (%d padded)\n", img.OriginalSize, img.Size())
//
// Images built by the vendor toolchain start with a "BFNP" boot header;
// HasBootHeader reports whether one is present.
//
// # Chunking
//
// Chunks splits the padded image into flash write units placed at a flash
// offset:
//
//	for _, c := range img.Chunks(firmware.DefaultFlashOffset, firmware.DefaultChunkSize) {
//	    fmt.Printf("write %08x..%08x\n", c.Addr, c.End())
//	}
package firmware
