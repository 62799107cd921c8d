package main

import "github.com/thorhanks/MealOps/cmd/mealops"

func main() {
	mealops.Execute()
}
