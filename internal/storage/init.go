package storage

import (
	"MediaVault/config"
	"log"
)

// InitStorage builds both drivers and selects the default from config.
func InitStorage() {
	local, err := NewLocalDriver(config.AppConfig.LocalStorageRoot)
	if err != nil {
		log.Fatalln("init local storage fail:", err)
	}
	Register(local)

	s3 := NewS3Driver()
	Register(s3)

	switch config.AppConfig.StorageDriver {
	case DriverS3:
		Default = s3
	case DriverLocal:
		Default = local
	default:
		log.Fatalf("unknown STORAGE_DRIVER %q", config.AppConfig.StorageDriver)
	}
	log.Println("init storage success, default driver:", Default.Name())
}
