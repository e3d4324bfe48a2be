// Command textboard shows text received over HTTP (and optionally MQTT) on a
// Pimoroni Pico Display attached to a Raspberry Pi Pico W.
//
// Build with the network credentials linked in:
//
//	tinygo flash -target=pico-w -ldflags="-X main.ssid=MyWiFi -X main.pass=secret" ./textboard
//
// then update the display with
//
//	curl -d '{"text":"Hello world","size":2,"color":"#00FF00"}' http://<ip>:8000/receive
//	curl http://<ip>:8000/status
package main

import (
	"errors"
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/harveysanders/picodisplay/textboard/control"
	"github.com/harveysanders/picodisplay/textboard/cyw43439"
	"github.com/harveysanders/picodisplay/textboard/httpd"
	"github.com/harveysanders/picodisplay/textboard/lcd"
	"github.com/harveysanders/picodisplay/textboard/mqtt"
	"github.com/harveysanders/picodisplay/textboard/screen"
	"github.com/harveysanders/picodisplay/textboard/state"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
	"tinygo.org/x/drivers/st7789"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	hostname = "textboard"
	httpPort = 8000
)

// Set via linker flags.
var (
	ssid     string
	pass     string
	mqttAddr string // host:port, MQTT is disabled when empty.
	mqttUser string
	mqttPass string
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	debugLED := machine.GP21
	debugLED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Status LCD over I2C. It is optional, the controller runs without it.
	lcdMessages := make(chan lcd.Message, 4)
	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		logger.Error("configure I2C", slog.Any("reason", err))
	} else if dev, err := configureLCD(machine.I2C0); err != nil {
		logger.Warn("status LCD disabled", slog.Any("reason", err))
	} else {
		go lcd.NewHandler(&dev, lcdMessages, logger).Run()
	}
	lcd.Send(lcdMessages, "textboard", "Starting...")

	display, err := configureDisplay()
	if err != nil {
		printErrForever(logger, "configure display", slog.Any("reason", err))
	}

	st := state.New()
	canvas := screen.New(&display, &proggy.TinySZ8pt7b, state.DefaultColor)
	handler := control.NewHandler(st, canvas, canvas, logger)
	endpoint := control.NewEndpoint(handler, st, logger)
	if err := endpoint.Redraw(); err != nil {
		logger.Error("initial draw", slog.Any("reason", err))
	}

	lcd.Send(lcdMessages, "WiFi", "Joining "+ssid)
	stack, err := cyw43439.Up(cyw43439.Config{
		SSID:        ssid,
		Password:    pass,
		Hostname:    hostname,
		MaxTCPPorts: 2, // HTTP server and MQTT bridge.
		Logger:      logger,
	})
	if err != nil {
		lcd.Send(lcdMessages, "WiFi failed", err.Error())
		printErrForever(logger, "network setup", slog.Any("reason", err))
	}
	listenAddr := stack.Addr().String() + ":" + strconv.Itoa(httpPort)
	logger.Info("Listening on http://" + listenAddr)
	lcd.Send(lcdMessages, listenAddr, "Ready")

	if mqttAddr != "" {
		bridge := mqtt.NewBridge(hostname, 4, logger)
		bridge.Username = mqttUser
		bridge.Password = mqttPass
		bridge.LCD = lcdMessages
		endpoint.OnCommit = bridge.OnCommit
		go func() {
			err := bridge.Run(stack.Net(), mqttAddr, endpoint)
			if err != nil {
				printErrForever(logger, "mqtt bridge", slog.Any("reason", err))
			}
		}()
	}

	server := httpd.Server{
		Port:    httpPort,
		Handler: endpoint,
		Logger:  logger,
		BufSize: 1024,
		Timeout: 5 * time.Second,
		OnRequest: func(method, path string, status int) {
			lcd.Send(lcdMessages, listenAddr, lcd.RequestLine(method, path, status))
			debugLED.High()
			time.Sleep(50 * time.Millisecond)
			debugLED.Low()
		},
	}
	err = server.ListenAndServe(stack.Net())
	printErrForever(logger, "http server", slog.Any("reason", err))
}

// configureDisplay sets up the 240x135 ST7789 panel of the Pimoroni Pico
// Display Pack on SPI0.
func configureDisplay() (st7789.Device, error) {
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 16_000_000,
		SCK:       machine.GP18,
		SDO:       machine.GP19,
		Mode:      0,
	})
	if err != nil {
		return st7789.Device{}, errors.New("configure SPI:" + err.Error())
	}
	display := st7789.New(machine.SPI0,
		machine.NoPin, // RST is tied to the Pico's RUN pin.
		machine.GP16,  // DC
		machine.GP17,  // CS
		machine.GP20,  // Backlight
	)
	display.Configure(st7789.Config{
		Width:        135,
		Height:       240,
		Rotation:     drivers.Rotation90,
		RowOffset:    40,
		ColumnOffset: 53,
	})
	return display, nil
}

// configureLCD takes a preconfigured I2C peripheral and attempts to
// initialize the HD44780 LCD display. If no LCD answers on the common I2C
// addresses (0x27, 0x3F), an error is returned.
func configureLCD(i2c *machine.I2C) (hd44780i2c.Device, error) {
	for _, a := range []uint8{0x27, 0x3F} {
		if err := i2c.Tx(uint16(a), []byte{0}, nil); err != nil {
			continue
		}
		dev := hd44780i2c.New(i2c, a)
		dev.Configure(hd44780i2c.Config{
			Width:  16,
			Height: 2,
		})
		return dev, nil
	}
	return hd44780i2c.Device{}, errors.New("LCD not found on addresses: 0x27, 0x3f")
}

// printErrForever logs msg to serial @ 1hz. It blocks forever so the error
// is still visible when the serial monitor attaches late.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
