package model

import (
	"optback/internal/broker"
	"optback/internal/market"
)

// Dummy 什么都不做，用来验证数据管道和驱动器本身。
type Dummy struct{}

func NewDummy() *Dummy { return &Dummy{} }

func (*Dummy) Name() string { return "dummy" }

func (*Dummy) BeforeSimulation(*broker.Broker) error { return nil }
func (*Dummy) AfterSimulation(*broker.Broker) error  { return nil }

func (*Dummy) RunLogic(*broker.Broker) ([]*market.Order, error) { return nil, nil }

func (*Dummy) ShowBODHeader(*broker.Broker)  {}
func (*Dummy) ShowEODSummary(*broker.Broker) {}
