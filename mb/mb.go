// Package mb periodically gathers coils, discrete inputs and registers from
// modbus slaves and hands the values to a Handler.
package mb

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/thinkgos/timing/v4"

	modbus "github.com/thinkgos/mbus"
)

const (
	// DefaultRandValue 单位ms
	// 默认随机值上限,它影响当超时请求入ready队列时,
	// 当队列满,会启动一个随机时间rand.Intn(v)*1ms 延迟入队
	// 用于需要重试的延迟重试时间
	DefaultRandValue = 50
	// DefaultReadyQueuesLength 默认就绪列表长度
	DefaultReadyQueuesLength = 256
)

// ErrInvalidFuncCode gather jobs only read.
var ErrInvalidFuncCode = errors.New("mb: invalid function code")

// Client 客户端
type Client struct {
	modbus.Client
	randValue      int
	readyQueueSize int
	ready          chan *Request
	handler        Handler
	panicHandle    func(err interface{})
	log            zerolog.Logger
	base           *timing.Base
	ctx            context.Context
	cancel         context.CancelFunc
}

// Result 某个请求的结果与参数
type Result struct {
	SlaveID  byte          // 从机地址
	FuncCode byte          // 功能码
	Address  uint16        // 请求数据用实际地址
	Quantity uint16        // 请求数量
	ScanRate time.Duration // 扫描速率scan rate
	TxCnt    uint64        // 发送计数
	ErrCnt   uint64        // 发送错误计数
}

// Request 请求
type Request struct {
	SlaveID  byte          // 从机地址
	FuncCode byte          // 功能码
	Address  uint16        // 请求数据用实际地址
	Quantity uint16        // 请求数量
	ScanRate time.Duration // 扫描速率scan rate
	txCnt    uint64        // 发送计数
	errCnt   uint64        // 发送错误计数
	tm       *timing.Timer
}

// New 创建新的client
func New(c modbus.Client, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	sf := &Client{
		Client:         c,
		randValue:      DefaultRandValue,
		readyQueueSize: DefaultReadyQueuesLength,
		handler:        &NopProc{},
		panicHandle:    func(interface{}) {},
		log:            zerolog.Nop(),
		base:           timing.New(),
		ctx:            ctx,
		cancel:         cancel,
	}

	for _, opt := range opts {
		opt(sf)
	}
	sf.ready = make(chan *Request, sf.readyQueueSize)
	return sf
}

// Start 启动, jobs added before Start wait for it.
func (sf *Client) Start() error {
	if err := sf.ctx.Err(); err != nil {
		return err
	}
	sf.base.Run()
	go sf.readPoll()
	return nil
}

// Close 关闭
func (sf *Client) Close() error {
	sf.cancel()
	_ = sf.base.Close()
	return sf.Client.Close()
}

// splitRequest cuts r into requests no larger than a single read allows.
func splitRequest(r Request) ([]*Request, error) {
	var quantityMax int

	if r.SlaveID < modbus.AddressMin || r.SlaveID > modbus.AddressMax {
		return nil, fmt.Errorf("mb: slaveID '%v' must be between '%v' and '%v'",
			r.SlaveID, modbus.AddressMin, modbus.AddressMax)
	}

	switch r.FuncCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
		quantityMax = modbus.ReadBitsQuantityMax
	case modbus.FuncCodeReadInputRegisters, modbus.FuncCodeReadHoldingRegisters:
		quantityMax = modbus.ReadRegQuantityMax
	default:
		return nil, ErrInvalidFuncCode
	}
	if int(r.Address)+int(r.Quantity) > 0x10000 {
		return nil, fmt.Errorf("mb: address '%v' quantity '%v' exceed the address space", r.Address, r.Quantity)
	}

	var reqs []*Request
	address := r.Address
	remain := int(r.Quantity)
	for remain > 0 {
		count := remain
		if count > quantityMax {
			count = quantityMax
		}
		reqs = append(reqs, &Request{
			SlaveID:  r.SlaveID,
			FuncCode: r.FuncCode,
			Address:  address,
			Quantity: uint16(count),
			ScanRate: r.ScanRate,
		})
		address += uint16(count)
		remain -= count
	}
	return reqs, nil
}

// AddGatherJob 增加采集任务, a job larger than one read is split. Each part
// is first read after ScanRate and then every ScanRate, zero reads it once.
func (sf *Client) AddGatherJob(r Request) error {
	if err := sf.ctx.Err(); err != nil {
		return err
	}
	reqs, err := splitRequest(r)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		req := req
		req.tm = timing.NewJobFunc(func() {
			select {
			case <-sf.ctx.Done():
				return
			case sf.ready <- req:
			default:
				sf.base.Add(req.tm, time.Duration(rand.Intn(sf.randValue))*time.Millisecond)
			}
		}, req.ScanRate)
		sf.base.Add(req.tm)
	}
	return nil
}

// 读协程
func (sf *Client) readPoll() {
	for {
		select {
		case <-sf.ctx.Done():
			sf.log.Debug().Msg("read poll exit")
			return
		case req := <-sf.ready: // 查看是否有准备好的请求
			sf.procRequest(req)
		}
	}
}

func (sf *Client) procRequest(req *Request) {
	var err error
	var result []byte

	defer func() {
		if err := recover(); err != nil {
			sf.panicHandle(err)
		}
	}()

	req.txCnt++
	switch req.FuncCode {
	// Bit access read
	case modbus.FuncCodeReadCoils:
		result, err = sf.ReadCoils(sf.ctx, req.SlaveID, req.Address, req.Quantity)
		if err == nil {
			sf.handler.ProcReadCoils(req.SlaveID, req.Address, req.Quantity, result)
		}
	case modbus.FuncCodeReadDiscreteInputs:
		result, err = sf.ReadDiscreteInputs(sf.ctx, req.SlaveID, req.Address, req.Quantity)
		if err == nil {
			sf.handler.ProcReadDiscretes(req.SlaveID, req.Address, req.Quantity, result)
		}

	// 16-bit access read
	case modbus.FuncCodeReadHoldingRegisters:
		result, err = sf.ReadHoldingRegistersBytes(sf.ctx, req.SlaveID, req.Address, req.Quantity)
		if err == nil {
			sf.handler.ProcReadHoldingRegisters(req.SlaveID, req.Address, req.Quantity, result)
		}
	case modbus.FuncCodeReadInputRegisters:
		result, err = sf.ReadInputRegistersBytes(sf.ctx, req.SlaveID, req.Address, req.Quantity)
		if err == nil {
			sf.handler.ProcReadInputRegisters(req.SlaveID, req.Address, req.Quantity, result)
		}
	}
	if err != nil {
		req.errCnt++
		sf.log.Error().Err(err).
			Uint8("slave", req.SlaveID).
			Uint8("func", req.FuncCode).
			Uint16("address", req.Address).
			Msg("gather")
	}

	if req.ScanRate > 0 && req.tm != nil {
		sf.base.Add(req.tm, req.ScanRate)
	}
	sf.handler.ProcResult(err, &Result{
		req.SlaveID,
		req.FuncCode,
		req.Address,
		req.Quantity,
		req.ScanRate,
		req.txCnt,
		req.errCnt,
	})
}
