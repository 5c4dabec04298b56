package location

import (
	"sync"

	"geo_attend/internal/models"
)

type sensorKind int

const (
	accelerometer sensorKind = iota
	gyroscope
	magnetometer
)

// SensorFeed is a SensorSource whose readings are pushed in by a device.
type SensorFeed struct {
	mu        sync.Mutex
	nextID    int
	listeners [3]map[int]func(models.SensorReading)
}

// NewSensorFeed returns an empty SensorFeed.
func NewSensorFeed() *SensorFeed {
	f := &SensorFeed{}
	for i := range f.listeners {
		f.listeners[i] = make(map[int]func(models.SensorReading))
	}
	return f
}

func (f *SensorFeed) SubscribeAccelerometer(fn func(models.SensorReading)) (Subscription, error) {
	return f.subscribe(accelerometer, fn), nil
}

func (f *SensorFeed) SubscribeGyroscope(fn func(models.SensorReading)) (Subscription, error) {
	return f.subscribe(gyroscope, fn), nil
}

func (f *SensorFeed) SubscribeMagnetometer(fn func(models.SensorReading)) (Subscription, error) {
	return f.subscribe(magnetometer, fn), nil
}

func (f *SensorFeed) subscribe(kind sensorKind, fn func(models.SensorReading)) Subscription {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[kind][id] = fn
	f.mu.Unlock()

	var once sync.Once
	return cancelFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners[kind], id)
			f.mu.Unlock()
		})
	})
}

// Listeners returns how many subscriptions are live, across all sensors.
func (f *SensorFeed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.listeners {
		n += len(l)
	}
	return n
}

func (f *SensorFeed) PushAccelerometer(r models.SensorReading) { f.push(accelerometer, r) }
func (f *SensorFeed) PushGyroscope(r models.SensorReading)     { f.push(gyroscope, r) }
func (f *SensorFeed) PushMagnetometer(r models.SensorReading)  { f.push(magnetometer, r) }

func (f *SensorFeed) push(kind sensorKind, r models.SensorReading) {
	f.mu.Lock()
	fns := make([]func(models.SensorReading), 0, len(f.listeners[kind]))
	for _, fn := range f.listeners[kind] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}
