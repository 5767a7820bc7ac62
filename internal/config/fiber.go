package config

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, bodyLimit int64) *fiber.App {
	if bodyLimit <= 0 {
		bodyLimit = 20 * 1024 * 1024
	}

	app := fiber.New(
		fiber.Config{
			AppName:           "Try-On Service",
			BodyLimit:         int(bodyLimit) + 1024*1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: logger.IsLevelEnabled(logrus.DebugLevel),
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
		})

	return app
}
