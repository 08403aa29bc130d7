package main

// General API documentation for swaggo. Run `swag init -g cmd/rfidd/docs.go` to regenerate docs.
//
// @title           rfidd API
// @version         1.0
// @description     HTTP API for a UHF RFID reader session: inventory, auto-tuning and tag memory access.
//
// @contact.name   rfidd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
