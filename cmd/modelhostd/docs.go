package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           modelhostd API
// @version         1.0
// @description     HTTP API for local model lifecycle, telemetry and health.
//
// @contact.name   modelhostd maintainers
// @contact.url    https://github.com/your-org/modelhostd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
