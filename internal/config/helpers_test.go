package config

import "rfidd/internal/driver/serialdrv"

func serialWithParity(p string) serialdrv.PortOptions {
	return serialdrv.PortOptions{Parity: p}
}
