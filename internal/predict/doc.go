// Package predict is the boundary to the text-completion service: it renders
// a prompt per seed employee, sends the requests one at a time with a fixed
// gap, and turns the free-text answers back into rows of amounts.
package predict
