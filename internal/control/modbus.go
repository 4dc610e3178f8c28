package control

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// register addresses, carried over from the teacher's Sigenergy
// register map (sigenergy/modbus_client.go) since this system targets
// the same plant-level holding-register layout; only the water-heater
// contactor coil is this repo's own addition, mapped into the
// vendor's spare coil range.
const (
	regEMSEnable         = 40029
	regEMSMode           = 40031
	regChargeLimit       = 40032 // 2 registers, u32, watts
	regDischargeLimit    = 40034 // 2 registers, u32, watts
	regPVExportLimit     = 40036 // 2 registers, u32, watts
	regWaterHeaterCoil   = 10
	regBatterySoC        = 30014
	regPVPower           = 30016 // 2 registers, s32, watts
	regLoadPower         = 30020 // 2 registers, s32, watts
)

// ModbusEntities is the goburrow/modbus-backed Entities implementation.
type ModbusEntities struct {
	client  modbus.Client
	closer  func() error
	timeout time.Duration
}

// NewTCP dials a Modbus TCP EMS, the generalized form of the teacher's
// NewTCPClient.
func NewTCP(address string, slaveID byte, timeout time.Duration) (*ModbusEntities, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus tcp %s: %w", address, err)
	}
	return &ModbusEntities{client: modbus.NewClient(handler), closer: handler.Close, timeout: timeout}, nil
}

// NewRTU dials a Modbus RTU EMS over a serial line, the generalized
// form of the teacher's NewRTUClient.
func NewRTU(device string, baudRate int, slaveID byte, timeout time.Duration) (*ModbusEntities, error) {
	handler := modbus.NewRTUClientHandler(device)
	handler.BaudRate = baudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = slaveID
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus rtu %s: %w", device, err)
	}
	return &ModbusEntities{client: modbus.NewClient(handler), closer: handler.Close, timeout: timeout}, nil
}

func (m *ModbusEntities) Close() error { return m.closer() }

func (m *ModbusEntities) EnableEMS(ctx context.Context, enable bool) error {
	var v uint16
	if enable {
		v = 1
	}
	_, err := m.client.WriteSingleRegister(regEMSEnable, v)
	if err != nil {
		return fmt.Errorf("write EMS enable: %w", err)
	}
	return nil
}

func (m *ModbusEntities) SetMode(ctx context.Context, mode Mode) error {
	if _, err := m.client.WriteSingleRegister(regEMSMode, uint16(mode)); err != nil {
		return fmt.Errorf("write EMS mode: %w", err)
	}
	return nil
}

func (m *ModbusEntities) SetChargeLimitKW(ctx context.Context, kw float64) error {
	return m.writePowerU32(regChargeLimit, kw)
}

func (m *ModbusEntities) SetDischargeLimitKW(ctx context.Context, kw float64) error {
	return m.writePowerU32(regDischargeLimit, kw)
}

func (m *ModbusEntities) SetExportLimitKW(ctx context.Context, kw float64) error {
	return m.writePowerU32(regPVExportLimit, kw)
}

func (m *ModbusEntities) SetWaterHeater(ctx context.Context, on bool) error {
	var v uint16
	if on {
		v = 1
	}
	if _, err := m.client.WriteSingleCoil(regWaterHeaterCoil, v*0xFF00); err != nil {
		return fmt.Errorf("write water heater coil: %w", err)
	}
	return nil
}

func (m *ModbusEntities) writePowerU32(reg uint16, kw float64) error {
	watts := uint32(kw * 1000)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, watts)
	if _, err := m.client.WriteMultipleRegisters(reg, 2, buf); err != nil {
		return fmt.Errorf("write register %d: %w", reg, err)
	}
	return nil
}

func (m *ModbusEntities) ReadConfirmation(ctx context.Context) (Confirmation, error) {
	var c Confirmation

	enabled, err := m.client.ReadHoldingRegisters(regEMSEnable, 1)
	if err != nil {
		return c, fmt.Errorf("read EMS enable: %w", err)
	}
	c.EMSEnabled = binary.BigEndian.Uint16(enabled) != 0

	mode, err := m.client.ReadHoldingRegisters(regEMSMode, 1)
	if err != nil {
		return c, fmt.Errorf("read EMS mode: %w", err)
	}
	c.Mode = Mode(binary.BigEndian.Uint16(mode))

	chg, err := m.client.ReadHoldingRegisters(regChargeLimit, 2)
	if err != nil {
		return c, fmt.Errorf("read charge limit: %w", err)
	}
	c.ChargeLimitKW = float64(binary.BigEndian.Uint32(chg)) / 1000

	dis, err := m.client.ReadHoldingRegisters(regDischargeLimit, 2)
	if err != nil {
		return c, fmt.Errorf("read discharge limit: %w", err)
	}
	c.DischargeLimitKW = float64(binary.BigEndian.Uint32(dis)) / 1000

	exp, err := m.client.ReadHoldingRegisters(regPVExportLimit, 2)
	if err != nil {
		return c, fmt.Errorf("read export limit: %w", err)
	}
	c.ExportLimitKW = float64(binary.BigEndian.Uint32(exp)) / 1000

	soc, err := m.client.ReadInputRegisters(regBatterySoC, 1)
	if err != nil {
		return c, fmt.Errorf("read battery soc: %w", err)
	}
	c.BatterySoCPct = float64(binary.BigEndian.Uint16(soc)) / 10

	pv, err := m.client.ReadInputRegisters(regPVPower, 2)
	if err != nil {
		return c, fmt.Errorf("read pv power: %w", err)
	}
	c.PVPowerKW = float64(int32(binary.BigEndian.Uint32(pv))) / 1000

	load, err := m.client.ReadInputRegisters(regLoadPower, 2)
	if err != nil {
		return c, fmt.Errorf("read load power: %w", err)
	}
	c.LoadPowerKW = float64(int32(binary.BigEndian.Uint32(load))) / 1000

	coil, err := m.client.ReadCoils(regWaterHeaterCoil, 1)
	if err != nil {
		return c, fmt.Errorf("read water heater coil: %w", err)
	}
	c.WaterHeaterOn = len(coil) > 0 && coil[0] != 0

	return c, nil
}
