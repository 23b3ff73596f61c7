package loader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/loader"
)

var _ = Describe("Image Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "image-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	write := func(name, contents string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(contents), 0644)).To(Succeed())
		return path
	}

	Describe("raw binaries", func() {
		It("should place the image at the origin", func() {
			path := write("prog.bin", "\x3E\x05\x76")

			prog, err := loader.Load(path, 0x100)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint16(0x100)))
			Expect(prog.Segments).To(Equal([]loader.Segment{{Addr: 0x100, Data: []byte{0x3E, 0x05, 0x76}}}))
			Expect(prog.Size()).To(Equal(3))
		})

		It("should reject an empty file", func() {
			path := write("empty.bin", "")
			_, err := loader.Load(path, 0)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an image past the top of memory", func() {
			_, err := loader.Binary(make([]byte, 0x20), 0xFFF0)
			Expect(err).To(MatchError(ContainSubstring("exceeds 64 KiB")))
		})

		It("should report a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "nope.bin"), 0)
			Expect(err).To(MatchError(ContainSubstring("failed to read image")))
		})
	})

	Describe("Intel HEX", func() {
		const image = ":03000000210001DB\n" +
			":03000300C3000037\n" +
			":020100000102FA\n" +
			":00000001FF\n"

		It("should parse and merge data records", func() {
			prog, err := loader.ParseHex(strings.NewReader(image))
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[0]).To(Equal(loader.Segment{
				Addr: 0,
				Data: []byte{0x21, 0x00, 0x01, 0xC3, 0x00, 0x00},
			}))
			Expect(prog.Segments[1]).To(Equal(loader.Segment{Addr: 0x100, Data: []byte{0x01, 0x02}}))
			Expect(prog.EntryPoint).To(BeZero())
		})

		It("should load by extension", func() {
			path := write("prog.hex", image)
			prog, err := loader.Load(path, 0x4000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Size()).To(Equal(8))
		})

		It("should honour a start address record", func() {
			prog, err := loader.ParseHex(strings.NewReader(
				":012000007669\n:0400000500002000D7\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint16(0x2000)))
		})

		It("should reject a bad checksum", func() {
			_, err := loader.ParseHex(strings.NewReader(":03000000210001DC\n:00000001FF\n"))
			Expect(err).To(MatchError(loader.ErrChecksum))
		})

		It("should require the end-of-file record", func() {
			_, err := loader.ParseHex(strings.NewReader(":03000000210001DB\n"))
			Expect(err).To(MatchError(ContainSubstring("end-of-file")))
		})

		It("should reject lines without a start code", func() {
			_, err := loader.ParseHex(strings.NewReader("03000000210001DB\n"))
			Expect(err).To(MatchError(ContainSubstring("start code")))
		})

		It("should reject data beyond 64 KiB", func() {
			_, err := loader.ParseHex(strings.NewReader(
				":020000040001F9\n:010000007689\n:00000001FF\n"))
			Expect(err).To(HaveOccurred())
		})

		It("should round-trip through WriteHex", func() {
			prog, err := loader.Binary(bytes.Repeat([]byte{0xA5}, 40), 0x8000)
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(loader.WriteHex(&buf, prog)).To(Succeed())
			Expect(strings.Count(buf.String(), "\n")).To(Equal(3 + 2))

			back, err := loader.ParseHex(&buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(prog))
		})
	})

	Describe("Program", func() {
		It("should copy segments into memory", func() {
			prog, err := loader.ParseHex(strings.NewReader(
				":03000000210001DB\n:020100000102FA\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())

			mem := emu.NewMemory()
			Expect(prog.LoadIntoMemory(mem)).To(Succeed())
			Expect(mem.Slice(0, 3)).To(Equal([]byte{0x21, 0x00, 0x01}))
			Expect(mem.Slice(0x100, 2)).To(Equal([]byte{0x01, 0x02}))
		})
	})
})
