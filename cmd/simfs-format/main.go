package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-simfs"
)

type rootParameters struct {
	ImageFilepath string `short:"f" long:"image-filepath" description:"File-path of the simulated disk image to create" required:"true"`
	SectorSize    uint32 `short:"s" long:"sector-size" description:"Sector width in bytes" default:"128"`
	SectorCount   uint32 `short:"n" long:"sector-count" description:"Total number of sectors" default:"128"`
	NameLength    int    `short:"l" long:"name-length" description:"Maximum file/directory name length" default:"9"`
	DirCapacity   int    `short:"d" long:"dir-capacity" description:"Maximum entries per directory" default:"64"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	disk, err := simfs.CreateFileDisk(rootArguments.ImageFilepath, rootArguments.SectorSize, rootArguments.SectorCount)
	log.PanicIf(err)

	defer disk.Close()

	g := simfs.Geometry{
		SectorSize:  rootArguments.SectorSize,
		SectorCount: rootArguments.SectorCount,
		NameLength:  rootArguments.NameLength,
		DirCapacity: rootArguments.DirCapacity,
	}

	_, err = simfs.Format(disk, g)
	log.PanicIf(err)

	fmt.Printf("Formatted %s (%d sectors of %d bytes).\n", rootArguments.ImageFilepath, rootArguments.SectorCount, rootArguments.SectorSize)
}
