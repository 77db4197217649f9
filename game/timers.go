package game

import "time"

type timerService struct{}

func (timerService) AfterFunc(d time.Duration, f func()) TimerHandle {
	return time.AfterFunc(d, f)
}

func NewTimerService() TimerService {
	return timerService{}
}
